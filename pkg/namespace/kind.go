package namespace

// Kind is the type tag of a namespace item.
type Kind int

const (
	KindRoot Kind = iota
	KindVolume
	KindDirectory
	KindFile
)

// String returns the display name of the kind.
func (k Kind) String() string {
	switch k {
	case KindRoot:
		return "Root"
	case KindVolume:
		return "Volume"
	case KindDirectory:
		return "Directory"
	case KindFile:
		return "File"
	default:
		return "Unknown"
	}
}

// IsContainer reports whether items of this kind are path containers
// (Volume or Directory).
func (k Kind) IsContainer() bool {
	return k == KindVolume || k == KindDirectory
}

type kindSet map[Kind]struct{}

func kinds(ks ...Kind) kindSet {
	s := make(kindSet, len(ks))
	for _, k := range ks {
		s[k] = struct{}{}
	}
	return s
}

func (s kindSet) has(k Kind) bool {
	_, ok := s[k]
	return ok
}

// kindRules is the structural contract of one kind. The factory bakes it
// into every item it creates.
type kindRules struct {
	validParents  kindSet
	validChildren kindSet

	// parentViolation is reported when an item of this kind is attached to
	// a parent whose kind is not in validParents.
	parentViolation string

	// childViolation is reported when a child whose kind is not in
	// validChildren is attached to an item of this kind.
	childViolation string

	validateName func(string) error
}

var rules = map[Kind]*kindRules{
	KindRoot: {
		validParents:    kinds(),
		validChildren:   kinds(KindVolume),
		parentViolation: "the root cannot have a parent",
		childViolation:  "the root can only contain volumes",
		validateName:    ValidateName,
	},
	KindVolume: {
		validParents:    kinds(KindRoot),
		validChildren:   kinds(KindDirectory, KindFile),
		parentViolation: "a volume can only be placed under the root",
		childViolation:  "a volume can only contain directories and files",
		validateName:    ValidateVolumeName,
	},
	KindDirectory: {
		validParents:    kinds(KindVolume, KindDirectory),
		validChildren:   kinds(KindDirectory, KindFile),
		parentViolation: "a directory can only be placed in a volume or a directory",
		childViolation:  "a directory can only contain directories and files",
		validateName:    ValidateName,
	},
	KindFile: {
		validParents:    kinds(KindVolume, KindDirectory),
		validChildren:   kinds(),
		parentViolation: "a file can only be placed in a volume or a directory",
		childViolation:  "a file cannot contain other items",
		validateName:    ValidateName,
	},
}
