package l3contour

import "math"

// Cell edge slots used by the case table.
const (
	edgeBottom = iota
	edgeRight
	edgeTop
	edgeLeft
)

// segment joins two lattice edge crossings, identified by edge id.
type segment struct{ a, b int }

// isolines traces the level set z = level over g with marching squares and
// returns its polylines. Open chains come first, then closed loops, each
// group in lattice scan order. Cells with an undefined corner are skipped.
func isolines(g *Grid, level float64) [][]Point {
	n := g.N
	if n < 2 {
		return nil
	}

	hEdge := func(i, j int) int { return 2 * (j*n + i) }
	vEdge := func(i, j int) int { return 2*(j*n+i) + 1 }

	points := make(map[int]Point)
	crossing := func(id int) Point {
		if p, ok := points[id]; ok {
			return p
		}
		node := id / 2
		i, j := node%n, node/n
		var p Point
		if id%2 == 0 {
			z0, z1 := g.At(i, j), g.At(i+1, j)
			t := (level - z0) / (z1 - z0)
			p = Point{Lon: g.Lon[i] + t*(g.Lon[i+1]-g.Lon[i]), Lat: g.Lat[j]}
		} else {
			z0, z1 := g.At(i, j), g.At(i, j+1)
			t := (level - z0) / (z1 - z0)
			p = Point{Lon: g.Lon[i], Lat: g.Lat[j] + t*(g.Lat[j+1]-g.Lat[j])}
		}
		points[id] = p
		return p
	}

	var segs []segment
	for j := 0; j < n-1; j++ {
		for i := 0; i < n-1; i++ {
			bl, br := g.At(i, j), g.At(i+1, j)
			tr, tl := g.At(i+1, j+1), g.At(i, j+1)
			if math.IsNaN(bl) || math.IsNaN(br) || math.IsNaN(tr) || math.IsNaN(tl) {
				continue
			}

			idx := 0
			if bl >= level {
				idx |= 1
			}
			if br >= level {
				idx |= 2
			}
			if tr >= level {
				idx |= 4
			}
			if tl >= level {
				idx |= 8
			}
			if idx == 0 || idx == 15 {
				continue
			}

			ids := [4]int{hEdge(i, j), vEdge(i+1, j), hEdge(i, j+1), vEdge(i, j)}
			add := func(e1, e2 int) {
				segs = append(segs, segment{a: ids[e1], b: ids[e2]})
			}

			centreAbove := (bl+br+tr+tl)/4 >= level
			switch idx {
			case 1, 14:
				add(edgeLeft, edgeBottom)
			case 2, 13:
				add(edgeBottom, edgeRight)
			case 3, 12:
				add(edgeLeft, edgeRight)
			case 4, 11:
				add(edgeRight, edgeTop)
			case 6, 9:
				add(edgeBottom, edgeTop)
			case 7, 8:
				add(edgeLeft, edgeTop)
			case 5:
				if centreAbove {
					add(edgeBottom, edgeRight)
					add(edgeLeft, edgeTop)
				} else {
					add(edgeLeft, edgeBottom)
					add(edgeRight, edgeTop)
				}
			case 10:
				if centreAbove {
					add(edgeLeft, edgeBottom)
					add(edgeRight, edgeTop)
				} else {
					add(edgeBottom, edgeRight)
					add(edgeLeft, edgeTop)
				}
			}
		}
	}
	if len(segs) == 0 {
		return nil
	}

	adj := make(map[int][]int, 2*len(segs))
	for s, seg := range segs {
		adj[seg.a] = append(adj[seg.a], s)
		adj[seg.b] = append(adj[seg.b], s)
	}
	used := make([]bool, len(segs))

	walk := func(start int) []int {
		chain := []int{start}
		cur := start
		for {
			next := -1
			for _, s := range adj[cur] {
				if !used[s] {
					next = s
					break
				}
			}
			if next < 0 {
				return chain
			}
			used[next] = true
			if segs[next].a == cur {
				cur = segs[next].b
			} else {
				cur = segs[next].a
			}
			if cur == start {
				return chain
			}
			chain = append(chain, cur)
		}
	}

	var lines [][]Point
	emit := func(chain []int) {
		line := make([]Point, len(chain))
		for k, id := range chain {
			line[k] = crossing(id)
		}
		lines = append(lines, line)
	}

	for s, seg := range segs {
		if used[s] {
			continue
		}
		for _, end := range [2]int{seg.a, seg.b} {
			if len(adj[end]) == 1 && !used[s] {
				emit(walk(end))
			}
		}
	}
	for s, seg := range segs {
		if !used[s] {
			emit(walk(seg.a))
		}
	}
	return lines
}
