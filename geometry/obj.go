package geometry

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/roworks/meshusd/types"
)

// ParseOBJ reads the geometry file at path into Buffers.
//
// Supported records:
//   - "v": vertex position, first three numeric fields
//   - "vt": UV pair, the second coordinate stored flipped as 1 - v
//   - "vn": vertex normal, taken verbatim
//   - "f": polygonal face; only the position index of each corner is
//     used (the first slash-delimited field), converted to zero-based.
//     Triangles pass through, quads are fanned into (0,1,2) and (0,2,3),
//     any other corner count is dropped without error.
//
// Numeric parse failures and malformed records abort the parse with a
// GEOMETRY_PARSE error; no mid-file recovery is attempted.
func ParseOBJ(path string) (*Buffers, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, types.NewGeometryError(fmt.Sprintf("open geometry file %s", path), err)
	}
	defer file.Close()

	buffers := &Buffers{}
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Fields(line)
		switch fields[0] {
		case "v":
			p, err := parseVec3(fields[1:])
			if err != nil {
				return nil, types.NewGeometryError(fmt.Sprintf("line %d: vertex position", lineNo), err)
			}
			buffers.Positions = append(buffers.Positions, p)

		case "vt":
			if len(fields) < 3 {
				return nil, types.NewGeometryError(fmt.Sprintf("line %d: UV record needs 2 coordinates", lineNo), nil)
			}
			u, err := parseFloat(fields[1])
			if err != nil {
				return nil, types.NewGeometryError(fmt.Sprintf("line %d: UV u coordinate", lineNo), err)
			}
			v, err := parseFloat(fields[2])
			if err != nil {
				return nil, types.NewGeometryError(fmt.Sprintf("line %d: UV v coordinate", lineNo), err)
			}
			// Flip the vertical axis to the document's UV convention.
			buffers.UVs = append(buffers.UVs, [2]float32{u, 1.0 - v})

		case "vn":
			n, err := parseVec3(fields[1:])
			if err != nil {
				return nil, types.NewGeometryError(fmt.Sprintf("line %d: vertex normal", lineNo), err)
			}
			buffers.Normals = append(buffers.Normals, n)

		case "f":
			if err := parseFace(buffers, fields[1:]); err != nil {
				return nil, types.NewGeometryError(fmt.Sprintf("line %d: face record", lineNo), err)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, types.NewGeometryError("read geometry file", err)
	}

	if err := buffers.Validate(); err != nil {
		return nil, types.NewGeometryError("geometry validation", err)
	}
	return buffers, nil
}

// parseFace appends the triangulated corner indices of one face record.
// Faces with fewer than 3 or more than 4 corners are skipped silently.
func parseFace(buffers *Buffers, corners []string) error {
	indices := make([]int32, 0, len(corners))
	for _, corner := range corners {
		// Only the position index matters; UV/normal sub-indices after
		// the first slash are ignored.
		posField := corner
		if slash := strings.IndexByte(corner, '/'); slash >= 0 {
			posField = corner[:slash]
		}
		idx, err := strconv.ParseInt(posField, 10, 32)
		if err != nil {
			return fmt.Errorf("corner index %q: %w", corner, err)
		}
		indices = append(indices, int32(idx)-1)
	}

	switch len(indices) {
	case 3:
		buffers.Indices = append(buffers.Indices, indices...)
	case 4:
		buffers.Indices = append(buffers.Indices,
			indices[0], indices[1], indices[2],
			indices[0], indices[2], indices[3],
		)
	default:
		// 1-2 corner and 5+ corner faces are skipped, not fatal.
	}
	return nil
}

func parseVec3(fields []string) ([3]float32, error) {
	var out [3]float32
	if len(fields) < 3 {
		return out, fmt.Errorf("need 3 numeric fields, got %d", len(fields))
	}
	for i := 0; i < 3; i++ {
		f, err := parseFloat(fields[i])
		if err != nil {
			return out, err
		}
		out[i] = f
	}
	return out, nil
}

func parseFloat(s string) (float32, error) {
	f, err := strconv.ParseFloat(s, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid numeric field %q: %w", s, err)
	}
	return float32(f), nil
}
