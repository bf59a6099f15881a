package shape

// Action is the result of comparing an existing descriptor against a new
// one, and the decision taken by Set.Insert.
type Action uint8

const (
	// NoOp means the compared trees are equivalent. From Insert it means
	// the schema was already present.
	NoOp Action = iota
	// Push means the shapes are genuinely distinct.
	Push
	// Keep means the existing side is strictly more informative.
	Keep
	// Take means the new side is strictly more informative.
	Take
)

func (a Action) String() string {
	switch a {
	case NoOp:
		return "noop"
	case Push:
		return "push"
	case Keep:
		return "keep"
	case Take:
		return "take"
	}
	return "unknown"
}

// Actions lists every action.
func Actions() []Action {
	return []Action{NoOp, Push, Keep, Take}
}

// Compare compares a descriptor a of a retained schema with the
// corresponding descriptor b of a new schema.
//
// The only subsumption recognised is between arrays: an empty array on
// the retained side yields Take when the new array is typed, and the
// reverse yields Keep. Every other mismatch yields Push.
func Compare(a, b Descriptor) Action {
	switch {
	case a.Tag == TagArray && b.Tag == TagArray:
		return compareArrays(a.Elems, b.Elems)
	case a.Tag == TagObject && b.Tag == TagObject:
		return compareObjects(a, b)
	default:
		if a.Equal(b) {
			return NoOp
		}
		return Push
	}
}

func compareArrays(a, b []Descriptor) Action {
	switch {
	case len(a) == 0 && len(b) > 0:
		return Take
	case len(b) == 0 && len(a) > 0:
		return Keep
	}
	if compareSets(a, b) == Push {
		return Push
	}
	return NoOp
}

// compareObjects walks the fields of a only. A field present in b but not
// in a is never looked at, so {x} against {x, y} is NoOp while {x, y}
// against {x} is Push.
// TODO: decide whether fields only present in b should yield Push. Set
// never sees the difference, but Compare is exported and the
// shapes_compare tool reports its result.
func compareObjects(a, b Descriptor) Action {
	for _, fa := range a.Fields {
		tb, ok := b.Lookup(fa.Name)
		if !ok {
			return Push
		}
		if setEqual(fa.Types, tb) {
			continue
		}
		if compareSets(fa.Types, tb) == Push {
			return Push
		}
	}
	return NoOp
}

// compareSets compares every pair of the cross product and reports Push
// as soon as one pair does. Take and Keep found below the top level of a
// field do not propagate.
func compareSets(a, b []Descriptor) Action {
	for _, x := range a {
		for _, y := range b {
			if Compare(x, y) == Push {
				return Push
			}
		}
	}
	return NoOp
}
