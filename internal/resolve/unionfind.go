package resolve

// unionFind is a disjoint-set over strings with path compression and
// union by rank.
type unionFind struct {
	parent map[string]string
	rank   map[string]int
}

func newUnionFind() *unionFind {
	return &unionFind{
		parent: make(map[string]string),
		rank:   make(map[string]int),
	}
}

func (u *unionFind) find(x string) string {
	if _, ok := u.parent[x]; !ok {
		u.parent[x] = x
		u.rank[x] = 0
		return x
	}
	if u.parent[x] != x {
		u.parent[x] = u.find(u.parent[x])
	}
	return u.parent[x]
}

// union merges the sets containing x and y. Returns false when they were
// already in the same set.
func (u *unionFind) union(x, y string) bool {
	rootX := u.find(x)
	rootY := u.find(y)
	if rootX == rootY {
		return false
	}

	switch {
	case u.rank[rootX] < u.rank[rootY]:
		u.parent[rootX] = rootY
	case u.rank[rootX] > u.rank[rootY]:
		u.parent[rootY] = rootX
	default:
		u.parent[rootY] = rootX
		u.rank[rootX]++
	}
	return true
}

// clusters returns root -> members. Members appear in the order given,
// which callers use to keep aliases in first-appearance order; names in
// order that were never unioned are skipped.
func (u *unionFind) clusters(order []string) map[string][]string {
	out := make(map[string][]string)
	for _, element := range order {
		if _, ok := u.parent[element]; !ok {
			continue
		}
		root := u.find(element)
		out[root] = append(out[root], element)
	}
	return out
}
