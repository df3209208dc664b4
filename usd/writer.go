package usd

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// Save serializes the stage as usda text to its backing path, creating
// parent directories as needed.
func (s *Stage) Save() error {
	s.mu.RLock()
	text := s.serialize()
	path := s.path
	s.mu.RUnlock()

	if path == "" {
		return fmt.Errorf("stage has no backing path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create document directory: %w", err)
	}
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		return fmt.Errorf("write document: %w", err)
	}
	return nil
}

// Serialize returns the usda text without writing it to disk.
func (s *Stage) Serialize() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.serialize()
}

func (s *Stage) serialize() string {
	var b strings.Builder
	b.WriteString("#usda 1.0\n(\n")
	if s.defaultPrim != "" {
		fmt.Fprintf(&b, "    defaultPrim = %q\n", s.defaultPrim)
	}
	for _, key := range s.sortedMetadataKeys() {
		fmt.Fprintf(&b, "    %s = %s\n", key, formatScalar(s.metadata[key]))
	}
	b.WriteString(")\n")

	for _, child := range s.root.Children() {
		b.WriteString("\n")
		writePrim(&b, child, 0)
	}
	return b.String()
}

func writePrim(b *strings.Builder, p *Prim, depth int) {
	indent := strings.Repeat("    ", depth)

	typeName := p.typeName
	if typeName == "" {
		fmt.Fprintf(b, "%sdef %q\n", indent, p.Name())
	} else {
		fmt.Fprintf(b, "%sdef %s %q\n", indent, typeName, p.Name())
	}

	// Prim metadata block: references and customData.
	if len(p.references) > 0 || len(p.metadata) > 0 {
		fmt.Fprintf(b, "%s(\n", indent)
		for _, ref := range p.references {
			fmt.Fprintf(b, "%s    prepend references = @%s@\n", indent, ref)
		}
		if len(p.metadata) > 0 {
			fmt.Fprintf(b, "%s    customData = {\n", indent)
			for _, key := range sortedKeys(p.metadata) {
				fmt.Fprintf(b, "%s        %s %s = %s\n", indent,
					metadataType(p.metadata[key]), key, formatScalar(p.metadata[key]))
			}
			fmt.Fprintf(b, "%s    }\n", indent)
		}
		fmt.Fprintf(b, "%s)\n", indent)
	}

	fmt.Fprintf(b, "%s{\n", indent)
	for _, attr := range p.attrs {
		writeAttribute(b, attr, depth+1)
	}
	for _, child := range p.Children() {
		b.WriteString("\n")
		writePrim(b, child, depth+1)
	}
	fmt.Fprintf(b, "%s}\n", indent)
}

func writeAttribute(b *strings.Builder, a *Attribute, depth int) {
	indent := strings.Repeat("    ", depth)

	decl := string(a.Type)
	if a.Uniform {
		decl = "uniform " + decl
	}

	if a.Type == TypeRelationship {
		fmt.Fprintf(b, "%srel %s = <%v>\n", indent, a.Name, a.Value)
		return
	}

	if a.Connection != "" {
		fmt.Fprintf(b, "%s%s %s.connect = <%s>\n", indent, decl, a.Name, a.Connection)
		return
	}

	value := formatValue(a.Type, a.Value)
	if a.Interpolation != "" {
		fmt.Fprintf(b, "%s%s %s = %s (\n%s    interpolation = %q\n%s)\n",
			indent, decl, a.Name, value, indent, a.Interpolation, indent)
		return
	}
	fmt.Fprintf(b, "%s%s %s = %s\n", indent, decl, a.Name, value)
}

func formatValue(t ValueType, v interface{}) string {
	switch t {
	case TypeAsset:
		return fmt.Sprintf("@%v@", v)
	case TypeString, TypeToken:
		return fmt.Sprintf("%q", v)
	}

	switch val := v.(type) {
	case [][3]float32:
		parts := make([]string, len(val))
		for i, p := range val {
			parts[i] = formatTriple(p)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case [][2]float32:
		parts := make([]string, len(val))
		for i, p := range val {
			parts[i] = fmt.Sprintf("(%s, %s)", formatFloat(p[0]), formatFloat(p[1]))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []int32:
		parts := make([]string, len(val))
		for i, n := range val {
			parts[i] = strconv.FormatInt(int64(n), 10)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []int:
		parts := make([]string, len(val))
		for i, n := range val {
			parts[i] = strconv.Itoa(n)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case [3]float32:
		return formatTriple(val)
	default:
		return formatScalar(v)
	}
}

func formatTriple(p [3]float32) string {
	return fmt.Sprintf("(%s, %s, %s)", formatFloat(p[0]), formatFloat(p[1]), formatFloat(p[2]))
}

func formatFloat(f float32) string {
	return strconv.FormatFloat(float64(f), 'g', -1, 32)
}

func formatScalar(v interface{}) string {
	switch val := v.(type) {
	case string:
		return fmt.Sprintf("%q", val)
	case float32:
		return formatFloat(val)
	case float64:
		return strconv.FormatFloat(val, 'g', -1, 64)
	case bool:
		if val {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprintf("%v", val)
	}
}

func metadataType(v interface{}) string {
	switch v.(type) {
	case string:
		return "string"
	case float32, float64:
		return "double"
	case bool:
		return "bool"
	case int, int32, int64:
		return "int"
	default:
		return "string"
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
