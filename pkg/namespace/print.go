package namespace

import (
	"sort"
	"strings"
)

// PrintTree renders the tree depth-first, one item per line.
//
// Siblings are grouped by kind (directories before files) and ordered by
// normalized name inside a group. Locked files list their lockers. The root
// line is only emitted when printRoot is set; depths shift accordingly.
func (o *Operations) PrintTree(printRoot bool) string {
	var b strings.Builder
	root := o.tree.Root()
	if printRoot {
		o.printLine(&b, root, 0)
		o.printChildren(&b, root, 1)
	} else {
		o.printChildren(&b, root, 0)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (o *Operations) printChildren(b *strings.Builder, h Handle, depth int) {
	children := o.tree.Children(h)
	sort.SliceStable(children, func(i, j int) bool {
		return o.tree.Kind(children[i]) < o.tree.Kind(children[j])
	})
	for _, child := range children {
		o.printLine(b, child, depth)
		o.printChildren(b, child, depth+1)
	}
}

func (o *Operations) printLine(b *strings.Builder, h Handle, depth int) {
	if depth > 0 {
		b.WriteString(strings.Repeat("|  ", depth-1))
		b.WriteString("|_ ")
	}
	b.WriteString(o.tree.Name(h))

	switch o.tree.Kind(h) {
	case KindDirectory:
		b.WriteString(" [DIR]")
	case KindFile:
		b.WriteString(" [FILE]")
		if lockers := o.tree.LockedBy(h); len(lockers) > 0 {
			b.WriteString(" [LOCKED BY: ")
			b.WriteString(strings.Join(lockers, ", "))
			b.WriteString("]")
		}
	}
	b.WriteString("\n")
}
