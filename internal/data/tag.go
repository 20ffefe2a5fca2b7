package data

// Tag labels components for filtering.
type Tag struct {
	Base `mapstructure:",squash"`
	Name string `mapstructure:"name"`
}

func (*Tag) DType() DType { return DTypeTag }

func (t *Tag) Fields() map[string]any {
	m := map[string]any{"name": t.Name}
	t.Base.putFields(m)
	return m
}

// NewTag builds a Tag from its wire mapping. name is required.
func NewTag(fields map[string]any) (Record, error) {
	if err := require(DTypeTag, fields, "name"); err != nil {
		return nil, err
	}
	var t Tag
	if err := decode(DTypeTag, fields, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// Generic holds a payload whose DType has no registered constructor.
// Every supplied field is kept.
type Generic struct {
	Kind   DType
	Values map[string]any
}

func (g *Generic) DType() DType { return g.Kind }

func (g *Generic) Fields() map[string]any { return copyFields(g.Values) }

// genericConstructor returns the fallback constructor for tag.
func genericConstructor(tag DType) Constructor {
	return func(fields map[string]any) (Record, error) {
		return &Generic{Kind: tag, Values: copyFields(fields)}, nil
	}
}
