package geometry

import (
	"bufio"
	"os"
	"strconv"
	"strings"
)

// Material is the parsed subset of the material text format: the first
// material definition's diffuse color and diffuse texture name.
type Material struct {
	Name       string
	Diffuse    [3]float32
	HasDiffuse bool
	DiffuseMap string
}

// ParseMTL reads the material file at path. Only the first material
// definition is used. Malformed lines are skipped rather than aborting:
// a broken material degrades the asset to its gray fallback color, it
// never fails the upload.
func ParseMTL(path string) (*Material, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var material *Material
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)

		switch fields[0] {
		case "newmtl":
			if material != nil {
				// First material wins.
				continue
			}
			material = &Material{}
			if len(fields) > 1 {
				material.Name = fields[1]
			}

		case "Kd":
			if material == nil || material.HasDiffuse || len(fields) < 4 {
				continue
			}
			var rgb [3]float32
			valid := true
			for i := 0; i < 3; i++ {
				f, err := strconv.ParseFloat(fields[i+1], 32)
				if err != nil {
					valid = false
					break
				}
				rgb[i] = float32(f)
			}
			if valid {
				material.Diffuse = rgb
				material.HasDiffuse = true
			}

		case "map_Kd":
			if material == nil || material.DiffuseMap != "" || len(fields) < 2 {
				continue
			}
			// Texture path arguments may contain options; the file name
			// is the last field.
			material.DiffuseMap = fields[len(fields)-1]
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return material, nil
}
