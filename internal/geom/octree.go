package geom

// Octree is a generic spatial index over axis-aligned boxes. Each leaf
// holds up to maxPerLeaf items before splitting into eight children; items
// straddling a split boundary are kept at the parent rather than
// duplicated, which keeps collisions() simple at the cost of deeper trees
// staying slightly fuller than a strict octree.
type Octree struct {
	bounds     Box
	maxPerLeaf int
	maxDepth   int

	items    []octItem
	children [8]*Octree
	split    bool
}

type octItem struct {
	box Box
	id  int
}

// NewOctree returns an empty tree covering bounds, splitting leaves once
// they hold more than maxPerLeaf items, down to at most maxDepth levels.
func NewOctree(bounds Box, maxPerLeaf, maxDepth int) *Octree {
	if maxPerLeaf < 1 {
		maxPerLeaf = 1
	}
	if maxDepth < 1 {
		maxDepth = 1
	}
	return &Octree{bounds: bounds, maxPerLeaf: maxPerLeaf, maxDepth: maxDepth}
}

// Insert adds a box (identified by id, typically a blob or peak index) to
// the tree.
func (t *Octree) Insert(id int, b Box) {
	t.insert(octItem{box: b, id: id}, t.maxDepth)
}

func (t *Octree) insert(it octItem, depthBudget int) {
	if !t.split && len(t.items) >= t.maxPerLeaf && depthBudget > 1 {
		t.subdivide()
	}
	if t.split {
		if child := t.childFor(it.box); child != nil {
			child.insert(it, depthBudget-1)
			return
		}
	}
	t.items = append(t.items, it)
}

func (t *Octree) subdivide() {
	c := t.bounds.Centre()
	lo, hi := t.bounds.Lo, t.bounds.Hi
	octant := func(i int) Box {
		x0, x1 := lo[0], c[0]
		if i&1 != 0 {
			x0, x1 = c[0], hi[0]
		}
		y0, y1 := lo[1], c[1]
		if i&2 != 0 {
			y0, y1 = c[1], hi[1]
		}
		z0, z1 := lo[2], c[2]
		if i&4 != 0 {
			z0, z1 = c[2], hi[2]
		}
		return Box{Lo: Vec3{x0, y0, z0}, Hi: Vec3{x1, y1, z1}}
	}
	for i := 0; i < 8; i++ {
		t.children[i] = NewOctree(octant(i), t.maxPerLeaf, t.maxDepth-1)
	}
	t.split = true

	kept := t.items[:0]
	for _, it := range t.items {
		if child := t.childFor(it.box); child != nil {
			child.insert(it, t.maxDepth-1)
		} else {
			kept = append(kept, it)
		}
	}
	t.items = kept
}

// childFor returns the single child octant that fully contains b, or nil
// if b straddles more than one octant (it then stays at this level).
func (t *Octree) childFor(b Box) *Octree {
	for _, child := range t.children {
		if child != nil && containsBox(child.bounds, b) {
			return child
		}
	}
	return nil
}

func containsBox(outer, inner Box) bool {
	return outer.Contains(inner.Lo) && outer.Contains(inner.Hi)
}

// Query returns the ids of every box in the tree that overlaps q.
func (t *Octree) Query(q Box) []int {
	var out []int
	t.query(q, &out)
	return out
}

func (t *Octree) query(q Box, out *[]int) {
	if !t.bounds.Collide(q) {
		return
	}
	for _, it := range t.items {
		if it.box.Collide(q) {
			*out = append(*out, it.id)
		}
	}
	if t.split {
		for _, child := range t.children {
			child.query(q, out)
		}
	}
}

// Collisions returns every pair of distinct ids whose boxes overlap,
// testing items at this node against each other, against ancestors'
// carried-over items, and recursing into children.
func (t *Octree) Collisions() [][2]int {
	var out [][2]int
	t.collisions(nil, &out)
	return out
}

func (t *Octree) collisions(ancestors []octItem, out *[][2]int) {
	all := append(append([]octItem{}, ancestors...), t.items...)
	for i := 0; i < len(t.items); i++ {
		for j := 0; j < len(ancestors)+i; j++ {
			a, b := t.items[i], all[j]
			if a.id == b.id {
				continue
			}
			if a.id < b.id && a.box.Collide(b.box) {
				*out = append(*out, [2]int{a.id, b.id})
			} else if a.id > b.id && a.box.Collide(b.box) {
				*out = append(*out, [2]int{b.id, a.id})
			}
		}
	}
	if t.split {
		for _, child := range t.children {
			child.collisions(all, out)
		}
	}
}

// Depth returns the tree's depth, counting the root as depth 1 (spec S3:
// a bulk load of N widely separated boxes must not produce a tree deeper
// than maxDepth).
func (t *Octree) Depth() int {
	if !t.split {
		return 1
	}
	max := 0
	for _, c := range t.children {
		if d := c.Depth(); d > max {
			max = d
		}
	}
	return 1 + max
}

// Len returns the total number of items stored in the tree (across every
// node, leaf or not).
func (t *Octree) Len() int {
	n := len(t.items)
	if t.split {
		for _, c := range t.children {
			n += c.Len()
		}
	}
	return n
}
