package host

import (
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/annel0/script-core/internal/vec"
)

// SpatialIndex сеточный индекс объектов сцены для поиска по радиусу.
// Ячейки режут горизонтальную плоскость XY, высота Z проверяется
// только при точном сравнении расстояния.
type SpatialIndex struct {
	cellSize float64

	mu      sync.RWMutex
	cells   map[cellKey]map[string]struct{}
	objects map[string]*indexedObject
}

// cellKey ключ ячейки в пространственной сетке
type cellKey struct {
	x, y int
}

type indexedObject struct {
	pos    vec.Vec3
	avatar bool
	cell   cellKey
}

// NewSpatialIndex создаёт пустой индекс с ячейками cellSize метров
func NewSpatialIndex(cellSize float64) *SpatialIndex {
	if cellSize <= 0 {
		cellSize = 16.0
	}
	return &SpatialIndex{
		cellSize: cellSize,
		cells:    make(map[cellKey]map[string]struct{}),
		objects:  make(map[string]*indexedObject),
	}
}

func (si *SpatialIndex) keyFor(pos vec.Vec3) cellKey {
	return cellKey{
		x: int(math.Floor(pos.X / si.cellSize)),
		y: int(math.Floor(pos.Y / si.cellSize)),
	}
}

// Upsert ставит объект в позицию pos, перенося его между ячейками при необходимости
func (si *SpatialIndex) Upsert(id string, pos vec.Vec3, avatar bool) {
	key := si.keyFor(pos)

	si.mu.Lock()
	defer si.mu.Unlock()

	obj, exists := si.objects[id]
	if !exists {
		obj = &indexedObject{cell: key}
		si.objects[id] = obj
		si.addToCell(key, id)
	} else if obj.cell != key {
		si.removeFromCell(obj.cell, id)
		si.addToCell(key, id)
		obj.cell = key
	}
	obj.pos = pos
	obj.avatar = avatar
}

// Remove убирает объект из индекса; отсутствующий id игнорируется
func (si *SpatialIndex) Remove(id string) {
	si.mu.Lock()
	defer si.mu.Unlock()

	obj, exists := si.objects[id]
	if !exists {
		return
	}
	si.removeFromCell(obj.cell, id)
	delete(si.objects, id)
}

// Position возвращает позицию объекта из индекса
func (si *SpatialIndex) Position(id string) (vec.Vec3, bool) {
	si.mu.RLock()
	defer si.mu.RUnlock()
	obj, ok := si.objects[id]
	if !ok {
		return vec.Vec3{}, false
	}
	return obj.pos, true
}

// QueryRange возвращает id объектов строго ближе radius к center, отсортированные.
// avatarsOnly оставляет только аватары.
func (si *SpatialIndex) QueryRange(center vec.Vec3, radius float64, avatarsOnly bool) []string {
	if radius <= 0 {
		return nil
	}
	minKey := si.keyFor(vec.Vec3{X: center.X - radius, Y: center.Y - radius})
	maxKey := si.keyFor(vec.Vec3{X: center.X + radius, Y: center.Y + radius})

	si.mu.RLock()
	var result []string
	for x := minKey.x; x <= maxKey.x; x++ {
		for y := minKey.y; y <= maxKey.y; y++ {
			for id := range si.cells[cellKey{x: x, y: y}] {
				obj := si.objects[id]
				if avatarsOnly && !obj.avatar {
					continue
				}
				if obj.pos.DistanceTo(center) < radius {
					result = append(result, id)
				}
			}
		}
	}
	si.mu.RUnlock()

	sort.Strings(result)
	return result
}

// Len количество объектов в индексе
func (si *SpatialIndex) Len() int {
	si.mu.RLock()
	defer si.mu.RUnlock()
	return len(si.objects)
}

// Stats краткая сводка для логов
func (si *SpatialIndex) Stats() string {
	si.mu.RLock()
	defer si.mu.RUnlock()

	maxPerCell := 0
	for _, cell := range si.cells {
		if len(cell) > maxPerCell {
			maxPerCell = len(cell)
		}
	}
	avg := 0.0
	if len(si.cells) > 0 {
		avg = float64(len(si.objects)) / float64(len(si.cells))
	}
	return fmt.Sprintf("SpatialIndex: %d objects, %d cells, avg %.2f/cell, max %d/cell",
		len(si.objects), len(si.cells), avg, maxPerCell)
}

func (si *SpatialIndex) addToCell(key cellKey, id string) {
	cell, ok := si.cells[key]
	if !ok {
		cell = make(map[string]struct{})
		si.cells[key] = cell
	}
	cell[id] = struct{}{}
}

func (si *SpatialIndex) removeFromCell(key cellKey, id string) {
	cell, ok := si.cells[key]
	if !ok {
		return
	}
	delete(cell, id)
	if len(cell) == 0 {
		delete(si.cells, key)
	}
}
