// Package namespace implements the simulated namespace: a single Root holding
// Volumes, which hold Directories and Files.
//
// Items live in an arena owned by Tree and are addressed by opaque Handle
// values. A parent is stored as a handle, children as a map from normalized
// name to handle, so there are no pointer cycles between items.
//
// Structural rules are not encoded in types. Every item carries the rules of
// its Kind (valid parent kinds, valid child kinds, violation messages, name
// validator), injected by the factory (Tree.Create).
//
// Thread Safety:
// Tree is not safe for concurrent use. The service that owns it processes one
// command at a time.
package namespace

import (
	"sort"
	"strings"

	"github.com/marmos91/simfs/pkg/fault"
)

// Handle addresses an item in the tree arena.
type Handle uint32

// NoHandle is the zero Handle. It never addresses a live item.
const NoHandle Handle = 0

// DefaultVolume is the volume created together with the root.
const DefaultVolume = "C:"

type item struct {
	kind     Kind
	name     string
	parent   Handle
	children map[string]Handle
	// lockedBy maps normalized user names to the name as given.
	lockedBy map[string]string
	rules    *kindRules
}

// Tree is the namespace hierarchy.
type Tree struct {
	// items is the arena; index 0 is reserved for NoHandle, released slots
	// are nil and recorded in free.
	items []*item
	free  []Handle
	root  Handle
	live  int
}

// New creates a tree whose root is named rootName, holding the default
// volume as its only child.
func New(rootName string) (*Tree, error) {
	if err := ValidateName(rootName); err != nil {
		return nil, err
	}

	t := &Tree{items: []*item{nil}}
	t.root = t.alloc(KindRoot, strings.TrimSpace(rootName))

	if _, err := t.AddVolume(DefaultVolume); err != nil {
		return nil, err
	}
	return t, nil
}

// Root returns the root handle.
func (t *Tree) Root() Handle {
	return t.root
}

// Len returns the number of live items, root included.
func (t *Tree) Len() int {
	return t.live
}

func (t *Tree) alloc(kind Kind, name string) Handle {
	it := &item{
		kind:  kind,
		name:  name,
		rules: rules[kind],
	}
	if kind != KindFile {
		it.children = make(map[string]Handle)
	} else {
		it.lockedBy = make(map[string]string)
	}

	t.live++
	if n := len(t.free); n > 0 {
		h := t.free[n-1]
		t.free = t.free[:n-1]
		t.items[h] = it
		return h
	}
	t.items = append(t.items, it)
	return Handle(len(t.items) - 1)
}

func (t *Tree) get(h Handle) (*item, error) {
	if h == NoHandle || int(h) >= len(t.items) || t.items[h] == nil {
		return nil, fault.Newf(fault.ErrStructural, "unknown item handle %d", h)
	}
	return t.items[h], nil
}

// Create is the item factory. It validates name against the rules of kind
// and returns a detached item. Roots cannot be created this way.
func (t *Tree) Create(kind Kind, name string) (Handle, error) {
	r, ok := rules[kind]
	if !ok || kind == KindRoot {
		return NoHandle, fault.Newf(fault.ErrValidation, "cannot create an item of kind %s", kind)
	}
	if err := r.validateName(name); err != nil {
		return NoHandle, err
	}

	name = strings.TrimSpace(name)
	if kind == KindVolume {
		name = strings.ToUpper(name)
	}
	return t.alloc(kind, name), nil
}

// AddVolume creates a volume and attaches it to the root.
func (t *Tree) AddVolume(name string) (Handle, error) {
	h, err := t.Create(KindVolume, name)
	if err != nil {
		return NoHandle, err
	}
	if err := t.AddChild(t.root, h); err != nil {
		t.Release(h)
		return NoHandle, err
	}
	return h, nil
}

// AddChild attaches a detached child to parent. It fails if the parent
// cannot hold the child's kind, the child cannot live under the parent's
// kind, or a sibling with the same normalized name exists.
func (t *Tree) AddChild(parent, child Handle) error {
	p, err := t.get(parent)
	if err != nil {
		return err
	}
	c, err := t.get(child)
	if err != nil {
		return err
	}
	if c.parent != NoHandle || child == t.root {
		return fault.WithPath(fault.ErrStructural, "item is already attached", c.name)
	}
	if !p.rules.validChildren.has(c.kind) {
		return fault.WithPath(fault.ErrStructural, p.rules.childViolation, p.name)
	}
	if !c.rules.validParents.has(p.kind) {
		return fault.WithPath(fault.ErrStructural, c.rules.parentViolation, c.name)
	}

	key := Normalize(c.name)
	if _, exists := p.children[key]; exists {
		return fault.WithPath(fault.ErrStructural,
			"an item with the same name already exists in "+p.name, c.name)
	}

	p.children[key] = child
	c.parent = parent
	return nil
}

// CanAdd reports, without mutating anything, the error AddChild would return
// for a child of the given kind and name.
func (t *Tree) CanAdd(parent Handle, kind Kind, name string) error {
	p, err := t.get(parent)
	if err != nil {
		return err
	}
	if !p.rules.validChildren.has(kind) {
		return fault.WithPath(fault.ErrStructural, p.rules.childViolation, p.name)
	}
	if !rules[kind].validParents.has(p.kind) {
		return fault.WithPath(fault.ErrStructural, rules[kind].parentViolation, name)
	}
	if _, exists := p.children[Normalize(name)]; exists {
		return fault.WithPath(fault.ErrStructural,
			"an item with the same name already exists in "+p.name, name)
	}
	return nil
}

// RemoveChild detaches child from parent. It fails if child is not a child
// of parent or is a locked file. The detached subtree stays in the arena
// until Release or a new AddChild.
func (t *Tree) RemoveChild(parent, child Handle) error {
	p, err := t.get(parent)
	if err != nil {
		return err
	}
	c, err := t.get(child)
	if err != nil {
		return err
	}

	key := Normalize(c.name)
	if h, ok := p.children[key]; !ok || h != child {
		return fault.WithPath(fault.ErrStructural, "item not found in "+p.name, c.name)
	}
	if c.kind == KindFile && len(c.lockedBy) > 0 {
		return fault.WithPath(fault.ErrLockConflict,
			"file is locked by "+strings.Join(t.LockedBy(child), ", "), c.name)
	}

	delete(p.children, key)
	c.parent = NoHandle
	return nil
}

// Release frees a detached item and its whole subtree.
func (t *Tree) Release(h Handle) {
	it, err := t.get(h)
	if err != nil || it.parent != NoHandle || h == t.root {
		return
	}
	t.release(h)
}

func (t *Tree) release(h Handle) {
	it := t.items[h]
	for _, child := range it.children {
		t.release(child)
	}
	t.items[h] = nil
	t.free = append(t.free, h)
	t.live--
}

// Lock adds user to the lockers of a file.
func (t *Tree) Lock(h Handle, user string) error {
	it, err := t.lockable(h, user)
	if err != nil {
		return err
	}
	key := Normalize(user)
	if _, ok := it.lockedBy[key]; ok {
		return fault.WithPath(fault.ErrLockConflict,
			"file is already locked by "+strings.TrimSpace(user), it.name)
	}
	it.lockedBy[key] = strings.TrimSpace(user)
	return nil
}

// Unlock removes user from the lockers of a file.
func (t *Tree) Unlock(h Handle, user string) error {
	it, err := t.lockable(h, user)
	if err != nil {
		return err
	}
	key := Normalize(user)
	if _, ok := it.lockedBy[key]; !ok {
		return fault.WithPath(fault.ErrLockConflict,
			"file is not locked by "+strings.TrimSpace(user), it.name)
	}
	delete(it.lockedBy, key)
	return nil
}

func (t *Tree) lockable(h Handle, user string) (*item, error) {
	it, err := t.get(h)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(user) == "" {
		return nil, fault.New(fault.ErrValidation, "user name cannot be empty")
	}
	if it.kind != KindFile {
		return nil, fault.WithPath(fault.ErrStructural, "only files can be locked", it.name)
	}
	return it, nil
}

// HasLocks reports whether h is a locked file or has one among its
// descendants.
func (t *Tree) HasLocks(h Handle) bool {
	it, err := t.get(h)
	if err != nil {
		return false
	}
	if it.kind == KindFile {
		return len(it.lockedBy) > 0
	}
	for _, child := range it.children {
		if t.HasLocks(child) {
			return true
		}
	}
	return false
}

// Kind returns the kind of h.
func (t *Tree) Kind(h Handle) Kind {
	if it, err := t.get(h); err == nil {
		return it.kind
	}
	return -1
}

// Name returns the name of h.
func (t *Tree) Name(h Handle) string {
	if it, err := t.get(h); err == nil {
		return it.name
	}
	return ""
}

// Parent returns the parent of h, or NoHandle for the root and detached
// items.
func (t *Tree) Parent(h Handle) Handle {
	if it, err := t.get(h); err == nil {
		return it.parent
	}
	return NoHandle
}

// Lookup returns the child of parent whose normalized name matches name.
func (t *Tree) Lookup(parent Handle, name string) (Handle, bool) {
	it, err := t.get(parent)
	if err != nil {
		return NoHandle, false
	}
	h, ok := it.children[Normalize(name)]
	return h, ok
}

// Children returns the children of h ordered by normalized name.
func (t *Tree) Children(h Handle) []Handle {
	it, err := t.get(h)
	if err != nil || len(it.children) == 0 {
		return nil
	}
	keys := make([]string, 0, len(it.children))
	for k := range it.children {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]Handle, len(keys))
	for i, k := range keys {
		out[i] = it.children[k]
	}
	return out
}

// LockedBy returns the users holding a lock on h, ordered by normalized name.
func (t *Tree) LockedBy(h Handle) []string {
	it, err := t.get(h)
	if err != nil || len(it.lockedBy) == 0 {
		return nil
	}
	keys := make([]string, 0, len(it.lockedBy))
	for k := range it.lockedBy {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = it.lockedBy[k]
	}
	return out
}

// Volumes returns the volumes under the root ordered by name.
func (t *Tree) Volumes() []Handle {
	return t.Children(t.root)
}

// IsAncestor reports whether ancestor appears in the parent chain of h,
// h itself included.
func (t *Tree) IsAncestor(ancestor, h Handle) bool {
	for cur := h; cur != NoHandle; cur = t.Parent(cur) {
		if cur == ancestor {
			return true
		}
	}
	return false
}

// Path returns the absolute path of h: the names from its volume down to h
// joined by the separator. The root has an empty path.
func (t *Tree) Path(h Handle) string {
	var names []string
	for cur := h; cur != NoHandle && cur != t.root; cur = t.Parent(cur) {
		names = append(names, t.Name(cur))
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return JoinPath(names...)
}
