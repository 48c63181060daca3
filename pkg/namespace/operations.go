package namespace

import (
	"strings"

	"github.com/marmos91/simfs/pkg/fault"
)

// Operations is the path-driven engine behind the console verbs.
//
// Every path argument is resolved against a current directory: a relative
// path is combined with it, the result is split into segments and walked
// from the root by normalized name. A blank current directory stands for the
// first volume.
//
// Every operation validates before it mutates. On error the tree is left
// exactly as it was.
type Operations struct {
	tree *Tree
}

// NewOperations creates the engine over tree.
func NewOperations(tree *Tree) *Operations {
	return &Operations{tree: tree}
}

// Tree returns the underlying tree.
func (o *Operations) Tree() *Tree {
	return o.tree
}

// AbsolutePath resolves path against currentDir without walking the tree.
func (o *Operations) AbsolutePath(currentDir, path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", fault.New(fault.ErrValidation, "path cannot be empty")
	}
	if strings.ContainsAny(path, invalidPathChars) {
		return "", fault.WithPath(fault.ErrValidation, "path contains invalid characters", path)
	}

	base := strings.TrimSpace(currentDir)
	if base == "" {
		volumes := o.tree.Volumes()
		if len(volumes) == 0 {
			return "", fault.New(fault.ErrStructural, "no volume available")
		}
		base = o.tree.Name(volumes[0])
	}

	abs := Combine(base, strings.TrimSpace(path))
	if !IsAbsolute(abs) {
		return "", fault.WithPath(fault.ErrValidation, "path must start with a volume name", abs)
	}
	return abs, nil
}

// Resolve returns the item at path.
func (o *Operations) Resolve(currentDir, path string) (Handle, error) {
	abs, err := o.AbsolutePath(currentDir, path)
	if err != nil {
		return NoHandle, err
	}
	return o.walk(abs, SplitPath(abs))
}

func (o *Operations) walk(abs string, segments []string) (Handle, error) {
	cur := o.tree.Root()
	for _, segment := range segments {
		next, ok := o.tree.Lookup(cur, segment)
		if !ok {
			return NoHandle, fault.WithPath(fault.ErrStructural, "path not found", abs)
		}
		cur = next
	}
	return cur, nil
}

// resolveContainer resolves all but the last segment of path to a volume or
// directory and returns it together with the last segment.
func (o *Operations) resolveContainer(currentDir, path string) (Handle, string, error) {
	abs, err := o.AbsolutePath(currentDir, path)
	if err != nil {
		return NoHandle, "", err
	}
	segments := SplitPath(abs)
	if len(segments) == 0 {
		return NoHandle, "", fault.WithPath(fault.ErrValidation, "path has no name", path)
	}

	container, err := o.walk(abs, segments[:len(segments)-1])
	if err != nil {
		return NoHandle, "", err
	}
	if !o.tree.Kind(container).IsContainer() {
		return NoHandle, "", fault.WithPath(fault.ErrStructural,
			"items can only be created in a volume or a directory", abs)
	}
	return container, segments[len(segments)-1], nil
}

func (o *Operations) resolveKind(currentDir, path string, want Kind) (Handle, error) {
	h, err := o.Resolve(currentDir, path)
	if err != nil {
		return NoHandle, err
	}
	if o.tree.Kind(h) != want {
		return NoHandle, fault.WithPath(fault.ErrStructural,
			"path is not a "+strings.ToLower(want.String()), o.tree.Path(h))
	}
	return h, nil
}

func (o *Operations) make(currentDir, path string, kind Kind) (string, error) {
	container, name, err := o.resolveContainer(currentDir, path)
	if err != nil {
		return "", err
	}
	h, err := o.tree.Create(kind, name)
	if err != nil {
		return "", err
	}
	if err := o.tree.AddChild(container, h); err != nil {
		o.tree.Release(h)
		return "", err
	}
	return o.tree.Path(h), nil
}

// MakeDirectory creates a directory and returns its absolute path.
func (o *Operations) MakeDirectory(currentDir, path string) (string, error) {
	return o.make(currentDir, path, KindDirectory)
}

// MakeFile creates a file and returns its absolute path.
func (o *Operations) MakeFile(currentDir, path string) (string, error) {
	return o.make(currentDir, path, KindFile)
}

// ChangeDirectory resolves path to a volume or directory and returns its
// absolute path. It does not mutate anything.
func (o *Operations) ChangeDirectory(currentDir, path string) (string, error) {
	h, err := o.Resolve(currentDir, path)
	if err != nil {
		return "", err
	}
	if !o.tree.Kind(h).IsContainer() {
		return "", fault.WithPath(fault.ErrStructural,
			"path is not a volume or a directory", o.tree.Path(h))
	}
	return o.tree.Path(h), nil
}

// RemoveDirectory removes an empty directory.
func (o *Operations) RemoveDirectory(currentDir, path string) (string, error) {
	h, err := o.resolveKind(currentDir, path, KindDirectory)
	if err != nil {
		return "", err
	}
	abs := o.tree.Path(h)
	if len(o.tree.Children(h)) > 0 {
		return "", fault.WithPath(fault.ErrStructural, "directory is not empty", abs)
	}
	return abs, o.detach(h)
}

// DeleteTree removes a directory and its whole subtree unless a file in it
// is locked.
func (o *Operations) DeleteTree(currentDir, path string) (string, error) {
	h, err := o.resolveKind(currentDir, path, KindDirectory)
	if err != nil {
		return "", err
	}
	abs := o.tree.Path(h)
	if o.tree.HasLocks(h) {
		return "", fault.WithPath(fault.ErrLockConflict, "directory contains locked files", abs)
	}
	return abs, o.detach(h)
}

// DeleteFile removes an unlocked file.
func (o *Operations) DeleteFile(currentDir, path string) (string, error) {
	h, err := o.resolveKind(currentDir, path, KindFile)
	if err != nil {
		return "", err
	}
	abs := o.tree.Path(h)
	return abs, o.detach(h)
}

func (o *Operations) detach(h Handle) error {
	if err := o.tree.RemoveChild(o.tree.Parent(h), h); err != nil {
		return err
	}
	o.tree.Release(h)
	return nil
}

// LockFile locks the file at path on behalf of user.
func (o *Operations) LockFile(currentDir, user, path string) (string, error) {
	h, err := o.resolveKind(currentDir, path, KindFile)
	if err != nil {
		return "", err
	}
	return o.tree.Path(h), o.tree.Lock(h, user)
}

// UnlockFile releases the lock user holds on the file at path.
func (o *Operations) UnlockFile(currentDir, user, path string) (string, error) {
	h, err := o.resolveKind(currentDir, path, KindFile)
	if err != nil {
		return "", err
	}
	return o.tree.Path(h), o.tree.Unlock(h, user)
}

// checkRelocation runs the validation shared by Copy and Move, in order:
// source kind, destination kind, distinct items, source not already in the
// destination, no cycle, no locks under the source, free name.
func (o *Operations) checkRelocation(currentDir, source, destination string) (Handle, Handle, error) {
	src, err := o.Resolve(currentDir, source)
	if err != nil {
		return NoHandle, NoHandle, err
	}
	dst, err := o.Resolve(currentDir, destination)
	if err != nil {
		return NoHandle, NoHandle, err
	}

	srcKind := o.tree.Kind(src)
	if srcKind != KindDirectory && srcKind != KindFile {
		return NoHandle, NoHandle, fault.WithPath(fault.ErrStructural,
			"source must be a directory or a file", o.tree.Path(src))
	}
	if !o.tree.Kind(dst).IsContainer() {
		return NoHandle, NoHandle, fault.WithPath(fault.ErrStructural,
			"destination must be a volume or a directory", o.tree.Path(dst))
	}
	if src == dst {
		return NoHandle, NoHandle, fault.WithPath(fault.ErrStructural,
			"source and destination are the same item", o.tree.Path(src))
	}
	if o.tree.Parent(src) == dst {
		return NoHandle, NoHandle, fault.WithPath(fault.ErrStructural,
			"source is already in the destination", o.tree.Path(src))
	}
	if srcKind == KindDirectory && o.tree.IsAncestor(src, dst) {
		return NoHandle, NoHandle, fault.WithPath(fault.ErrStructural,
			"destination is inside the source (cycle)", o.tree.Path(dst))
	}
	if o.tree.HasLocks(src) {
		return NoHandle, NoHandle, fault.WithPath(fault.ErrLockConflict,
			"source contains locked files", o.tree.Path(src))
	}
	if err := o.tree.CanAdd(dst, srcKind, o.tree.Name(src)); err != nil {
		return NoHandle, NoHandle, err
	}
	return src, dst, nil
}

// Move relocates source under destination and returns its new path.
func (o *Operations) Move(currentDir, source, destination string) (string, error) {
	src, dst, err := o.checkRelocation(currentDir, source, destination)
	if err != nil {
		return "", err
	}

	oldParent := o.tree.Parent(src)
	if err := o.tree.RemoveChild(oldParent, src); err != nil {
		return "", err
	}
	if err := o.tree.AddChild(dst, src); err != nil {
		// Put the item back so a failed attach never leaves it parentless.
		if rbErr := o.tree.AddChild(oldParent, src); rbErr != nil {
			return "", rbErr
		}
		return "", err
	}
	return o.tree.Path(src), nil
}

// Copy clones the subtree at source under destination and returns the path
// of the clone. Locks are not copied.
func (o *Operations) Copy(currentDir, source, destination string) (string, error) {
	src, dst, err := o.checkRelocation(currentDir, source, destination)
	if err != nil {
		return "", err
	}

	clone, err := o.clone(src)
	if err != nil {
		return "", err
	}
	if err := o.tree.AddChild(dst, clone); err != nil {
		o.tree.Release(clone)
		return "", err
	}
	return o.tree.Path(clone), nil
}

func (o *Operations) clone(src Handle) (Handle, error) {
	h, err := o.tree.Create(o.tree.Kind(src), o.tree.Name(src))
	if err != nil {
		return NoHandle, err
	}
	for _, child := range o.tree.Children(src) {
		c, err := o.clone(child)
		if err == nil {
			err = o.tree.AddChild(h, c)
			if err != nil {
				o.tree.Release(c)
			}
		}
		if err != nil {
			o.tree.Release(h)
			return NoHandle, err
		}
	}
	return h, nil
}
