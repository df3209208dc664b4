// Package usd implements the scene-document boundary consumed by the
// ingestion pipeline: an in-memory prim tree with typed attributes,
// reference arcs, and a usda text serialization. The pipeline only talks
// to stages and prims through the operations defined here, so the backing
// representation can be swapped without touching the builder or the
// attachment engine.
package usd

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// ValueType enumerates the attribute value types the writer understands.
type ValueType string

const (
	TypePoint3fArray    ValueType = "point3f[]"
	TypeNormal3fArray   ValueType = "normal3f[]"
	TypeTexCoord2fArray ValueType = "texCoord2f[]"
	TypeColor3fArray    ValueType = "color3f[]"
	TypeIntArray        ValueType = "int[]"
	TypeFloat3Array     ValueType = "float3[]"
	TypeColor3f         ValueType = "color3f"
	TypeFloat3          ValueType = "float3"
	TypeFloat           ValueType = "float"
	TypeFloat2          ValueType = "float2"
	TypeInt             ValueType = "int"
	TypeString          ValueType = "string"
	TypeToken           ValueType = "token"
	TypeAsset           ValueType = "asset"
	TypeBool            ValueType = "bool"
	TypeRelationship    ValueType = "rel"
)

// Attribute is one typed attribute on a prim.
type Attribute struct {
	Name          string
	Type          ValueType
	Value         interface{}
	Uniform       bool
	Interpolation string // "faceVarying", "vertex", "" for none
	Connection    string // target path for shader input connections
}

// SetInterpolation sets the primvar interpolation metadata.
func (a *Attribute) SetInterpolation(interp string) *Attribute {
	a.Interpolation = interp
	return a
}

// ConnectTo turns the attribute into a connection to another attribute,
// e.g. "/asset/mat/tex.outputs:rgb".
func (a *Attribute) ConnectTo(target string) *Attribute {
	a.Connection = target
	return a
}

// Prim is one named node in the document hierarchy.
type Prim struct {
	path       string
	typeName   string
	attrs      []*Attribute
	attrIndex  map[string]*Attribute
	children   []*Prim
	childIndex map[string]*Prim
	references []string
	metadata   map[string]interface{}
}

func newPrim(path, typeName string) *Prim {
	return &Prim{
		path:       path,
		typeName:   typeName,
		attrIndex:  make(map[string]*Attribute),
		childIndex: make(map[string]*Prim),
		metadata:   make(map[string]interface{}),
	}
}

// Path returns the full prim path, e.g. "/World/RoWorks/Assets/part".
func (p *Prim) Path() string { return p.path }

// Name returns the last path component.
func (p *Prim) Name() string {
	idx := strings.LastIndex(p.path, "/")
	return p.path[idx+1:]
}

// TypeName returns the prim schema type ("Xform", "Mesh", "Material", ...).
func (p *Prim) TypeName() string { return p.typeName }

// SetAttribute creates or replaces a typed attribute and returns it so
// interpolation or connection metadata can be chained on.
func (p *Prim) SetAttribute(name string, t ValueType, value interface{}) *Attribute {
	if existing, ok := p.attrIndex[name]; ok {
		existing.Type = t
		existing.Value = value
		return existing
	}
	attr := &Attribute{Name: name, Type: t, Value: value}
	p.attrs = append(p.attrs, attr)
	p.attrIndex[name] = attr
	return attr
}

// Attribute returns the named attribute, or nil.
func (p *Prim) Attribute(name string) *Attribute {
	return p.attrIndex[name]
}

// Attributes returns attributes in insertion order.
func (p *Prim) Attributes() []*Attribute { return p.attrs }

// AddReference adds a composition reference to another document.
func (p *Prim) AddReference(assetPath string) {
	p.references = append(p.references, assetPath)
}

// References returns reference asset paths in insertion order.
func (p *Prim) References() []string { return p.references }

// SetMetadata sets prim-level metadata (customData in the serialization).
func (p *Prim) SetMetadata(key string, value interface{}) {
	p.metadata[key] = value
}

// Metadata returns the prim metadata value, or nil.
func (p *Prim) Metadata(key string) interface{} { return p.metadata[key] }

// Children returns child prims in definition order.
func (p *Prim) Children() []*Prim { return p.children }

// Child returns the named child prim, or nil.
func (p *Prim) Child(name string) *Prim { return p.childIndex[name] }

func (p *Prim) addChild(c *Prim) {
	p.children = append(p.children, c)
	p.childIndex[c.Name()] = c
}

func (p *Prim) removeChild(name string) bool {
	if _, ok := p.childIndex[name]; !ok {
		return false
	}
	delete(p.childIndex, name)
	for i, c := range p.children {
		if c.Name() == name {
			p.children = append(p.children[:i], p.children[i+1:]...)
			break
		}
	}
	return true
}

// Layer identifies a backing layer of a stage.
type Layer struct {
	Identifier string
}

// Stage is one scene document: a prim hierarchy plus stage-level metadata,
// backed by a file path it serializes to on Save. Safe for concurrent use.
type Stage struct {
	mu          sync.RWMutex
	path        string
	root        *Prim // pseudo-root at "/"
	defaultPrim string
	metadata    map[string]interface{}
	metaOrder   []string
}

// NewStage creates a new empty stage backed by the given file path.
func NewStage(path string) *Stage {
	return &Stage{
		path:     path,
		root:     newPrim("/", ""),
		metadata: make(map[string]interface{}),
	}
}

// Path returns the backing file path.
func (s *Stage) Path() string { return s.path }

// RootLayer returns the root layer handle, or nil when the stage has no
// backing path (never the case for stages built here, but callers probe
// this as part of the readiness check).
func (s *Stage) RootLayer() *Layer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.path == "" {
		return nil
	}
	return &Layer{Identifier: s.path}
}

// SetMetadata sets stage-level metadata such as metersPerUnit or upAxis.
func (s *Stage) SetMetadata(key string, value interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.metadata[key]; !ok {
		s.metaOrder = append(s.metaOrder, key)
	}
	s.metadata[key] = value
}

// SetDefaultPrim marks the given prim as the document entry point.
func (s *Stage) SetDefaultPrim(p *Prim) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultPrim = p.Name()
}

// DefinePrim defines a prim at the given path, creating missing ancestors
// as typeless prims. Defining an existing path updates its type when a
// non-empty type is given and returns the existing prim.
func (s *Stage) DefinePrim(path, typeName string) (*Prim, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	parts, err := splitPath(path)
	if err != nil {
		return nil, err
	}

	cur := s.root
	for i, name := range parts {
		child := cur.Child(name)
		if child == nil {
			child = newPrim("/"+strings.Join(parts[:i+1], "/"), "")
			cur.addChild(child)
		}
		cur = child
	}
	if typeName != "" {
		cur.typeName = typeName
	}
	return cur, nil
}

// GetPrimAtPath returns the prim at path, or nil when absent.
func (s *Stage) GetPrimAtPath(path string) *Prim {
	s.mu.RLock()
	defer s.mu.RUnlock()

	parts, err := splitPath(path)
	if err != nil {
		return nil
	}
	cur := s.root
	for _, name := range parts {
		cur = cur.Child(name)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// RemovePrim removes the prim at path and its subtree.
func (s *Stage) RemovePrim(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	parts, err := splitPath(path)
	if err != nil {
		return err
	}
	if len(parts) == 0 {
		return fmt.Errorf("cannot remove pseudo-root")
	}
	cur := s.root
	for _, name := range parts[:len(parts)-1] {
		cur = cur.Child(name)
		if cur == nil {
			return fmt.Errorf("prim not found: %s", path)
		}
	}
	if !cur.removeChild(parts[len(parts)-1]) {
		return fmt.Errorf("prim not found: %s", path)
	}
	return nil
}

// TraverseAll returns every prim in the hierarchy in depth-first order.
func (s *Stage) TraverseAll() []*Prim {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*Prim
	var walk func(p *Prim)
	walk = func(p *Prim) {
		for _, c := range p.Children() {
			out = append(out, c)
			walk(c)
		}
	}
	walk(s.root)
	return out
}

// sortedMetadataKeys returns stage metadata keys in lexical order so the
// serialization is deterministic. defaultPrim is emitted separately.
func (s *Stage) sortedMetadataKeys() []string {
	keys := make([]string, len(s.metaOrder))
	copy(keys, s.metaOrder)
	sort.Strings(keys)
	return keys
}

func splitPath(path string) ([]string, error) {
	if !strings.HasPrefix(path, "/") {
		return nil, fmt.Errorf("prim path must be absolute: %q", path)
	}
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil, nil
	}
	parts := strings.Split(trimmed, "/")
	for _, p := range parts {
		if p == "" {
			return nil, fmt.Errorf("invalid prim path: %q", path)
		}
	}
	return parts, nil
}
