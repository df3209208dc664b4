// Package builder constructs the hierarchical scene-document asset from
// parsed geometry plus an optional material description.
package builder

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"

	// Texture probing registers the image formats textures may arrive in.
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/roworks/meshusd/geometry"
	"github.com/roworks/meshusd/types"
	"github.com/roworks/meshusd/usd"
)

// fallbackColor is the flat gray every mesh carries as display-color
// fallback, so the asset renders as something even when material
// evaluation fails downstream.
var fallbackColor = [3]float32{0.8, 0.8, 0.8}

// Request carries everything needed to build one asset document.
type Request struct {
	AssetName string
	Filename  string
	FileSize  int64
	Buffers   *geometry.Buffers
	Material  *geometry.Material // nil when the archive had no material file
	Textures  []string           // ordered texture paths, may be empty
}

// Result is the built, saved asset document.
type Result struct {
	DocumentPath  string
	Stage         *usd.Stage
	TriangleCount int
	HasMaterial   bool
}

// Builder builds scene asset documents under a fixed output directory.
type Builder struct {
	outputDir       string
	docExt          string
	generateNormals bool
	logger          *zap.Logger
}

// New creates a builder writing documents to <scratchRoot>/usd_assets.
func New(scratchRoot, docExt string, generateNormals bool, logger *zap.Logger) *Builder {
	return &Builder{
		outputDir:       filepath.Join(scratchRoot, "usd_assets"),
		docExt:          docExt,
		generateNormals: generateNormals,
		logger:          logger.With(zap.String("component", "asset_builder")),
	}
}

// Build constructs and saves the asset document. It fails only when the
// geometry is entirely empty or the document cannot be saved; every other
// step degrades rather than failing the build.
func (b *Builder) Build(req Request) (*Result, error) {
	if req.Buffers == nil || req.Buffers.IsEmpty() {
		return nil, types.NewBuildError("geometry has no vertices or faces", nil)
	}

	docPath := filepath.Join(b.outputDir, req.AssetName+"."+b.docExt)
	stage := usd.NewStage(docPath)
	stage.SetMetadata("metersPerUnit", 1.0)
	stage.SetMetadata("upAxis", "Y")

	rootPath := "/" + req.AssetName
	root, err := stage.DefinePrim(rootPath, "Xform")
	if err != nil {
		return nil, types.NewBuildError("define root prim", err)
	}
	stage.SetDefaultPrim(root)
	root.SetAttribute("roworks:source", usd.TypeString, "mesh_zip_upload")
	root.SetAttribute("roworks:original_filename", usd.TypeString, req.Filename)
	root.SetAttribute("roworks:file_size", usd.TypeInt, int(req.FileSize))

	mesh, err := stage.DefinePrim(rootPath+"/Mesh", "Mesh")
	if err != nil {
		return nil, types.NewBuildError("define mesh prim", err)
	}
	b.populateMesh(mesh, req.Buffers)

	hasMaterial := req.Material != nil || len(req.Textures) > 0
	if hasMaterial {
		if err := b.buildMaterialGraph(stage, rootPath, mesh, req); err != nil {
			// Binding failure degrades to the display-color fallback the
			// mesh already carries.
			b.logger.Warn("material binding failed, asset keeps gray fallback",
				zap.String("asset", req.AssetName), zap.Error(err))
			hasMaterial = false
		}
	}

	if err := stage.Save(); err != nil {
		return nil, types.NewBuildError(fmt.Sprintf("save document %s", docPath), err)
	}

	b.logger.Info("asset document built",
		zap.String("asset", req.AssetName),
		zap.String("document", docPath),
		zap.Int("triangles", req.Buffers.TriangleCount()),
		zap.Bool("material", hasMaterial),
	)
	return &Result{
		DocumentPath:  docPath,
		Stage:         stage,
		TriangleCount: req.Buffers.TriangleCount(),
		HasMaterial:   hasMaterial,
	}, nil
}

// populateMesh fills the mesh prim with geometry attributes. The
// face-count attribute is a uniform 3 per triangle derived from the index
// buffer length, never read from the source file.
func (b *Builder) populateMesh(mesh *usd.Prim, buffers *geometry.Buffers) {
	mesh.SetAttribute("points", usd.TypePoint3fArray, buffers.Positions)
	mesh.SetAttribute("faceVertexIndices", usd.TypeIntArray, buffers.Indices)

	counts := make([]int32, buffers.TriangleCount())
	for i := range counts {
		counts[i] = 3
	}
	mesh.SetAttribute("faceVertexCounts", usd.TypeIntArray, counts)

	if min, max, ok := buffers.Extent(); ok {
		mesh.SetAttribute("extent", usd.TypeFloat3Array, [][3]float32{min, max})
	}

	if len(buffers.UVs) > 0 {
		mesh.SetAttribute("primvars:st", usd.TypeTexCoord2fArray, buffers.UVs).
			SetInterpolation("faceVarying")
	}

	if b.generateNormals {
		buffers.GenerateNormals()
	}
	if len(buffers.Normals) > 0 {
		mesh.SetAttribute("normals", usd.TypeNormal3fArray, buffers.Normals).
			SetInterpolation("faceVarying")
	}

	// Display-color fallback is always present, material graph or not.
	mesh.SetAttribute("primvars:displayColor", usd.TypeColor3fArray, [][3]float32{fallbackColor})
}

// buildMaterialGraph creates the material and shader subgraph and binds it
// to the mesh. Texture sampling reads the first texture in the ordered
// list, wired through a primvar reader for the st coordinates.
func (b *Builder) buildMaterialGraph(stage *usd.Stage, rootPath string, mesh *usd.Prim, req Request) error {
	matPath := rootPath + "/Material"
	material, err := stage.DefinePrim(matPath, "Material")
	if err != nil {
		return fmt.Errorf("define material prim: %w", err)
	}

	surface, err := stage.DefinePrim(matPath+"/PreviewSurface", "Shader")
	if err != nil {
		return fmt.Errorf("define surface shader: %w", err)
	}
	surface.SetAttribute("info:id", usd.TypeToken, "UsdPreviewSurface")
	surface.SetAttribute("inputs:roughness", usd.TypeFloat, float32(0.5))
	surface.SetAttribute("inputs:metallic", usd.TypeFloat, float32(0.0))

	if len(req.Textures) > 0 {
		texturePath := req.Textures[0]

		stReader, err := stage.DefinePrim(matPath+"/stReader", "Shader")
		if err != nil {
			return fmt.Errorf("define st reader: %w", err)
		}
		stReader.SetAttribute("info:id", usd.TypeToken, "UsdPrimvarReader_float2")
		stReader.SetAttribute("inputs:varname", usd.TypeToken, "st")

		sampler, err := stage.DefinePrim(matPath+"/DiffuseTexture", "Shader")
		if err != nil {
			return fmt.Errorf("define texture sampler: %w", err)
		}
		sampler.SetAttribute("info:id", usd.TypeToken, "UsdUVTexture")
		sampler.SetAttribute("inputs:file", usd.TypeAsset, texturePath)
		sampler.SetAttribute("inputs:st", usd.TypeFloat2, nil).
			ConnectTo(stReader.Path() + ".outputs:result")

		if width, height, err := probeTexture(texturePath); err == nil {
			sampler.SetMetadata("roworks:texture_width", width)
			sampler.SetMetadata("roworks:texture_height", height)
		} else {
			b.logger.Debug("texture probe skipped",
				zap.String("texture", texturePath), zap.Error(err))
		}

		surface.SetAttribute("inputs:diffuseColor", usd.TypeColor3f, nil).
			ConnectTo(sampler.Path() + ".outputs:rgb")
	} else {
		color := fallbackColor
		if req.Material != nil && req.Material.HasDiffuse {
			color = req.Material.Diffuse
		}
		surface.SetAttribute("inputs:diffuseColor", usd.TypeColor3f, color)
	}

	material.SetAttribute("outputs:surface", usd.TypeToken, nil).
		ConnectTo(surface.Path() + ".outputs:surface")

	return bindMaterial(mesh, material)
}

// bindMaterial binds the material prim to the mesh.
func bindMaterial(mesh *usd.Prim, material *usd.Prim) error {
	if material == nil || material.Path() == "" {
		return fmt.Errorf("material prim is not usable for binding")
	}
	mesh.SetAttribute("material:binding", usd.TypeRelationship, material.Path())
	return nil
}

// probeTexture decodes only the image header to record texture dimensions.
// TGA has no registered config decoder, which is tolerated: the probe is
// metadata, not a gate.
func probeTexture(path string) (int, int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, 0, err
	}
	defer file.Close()

	cfg, _, err := image.DecodeConfig(file)
	if err != nil {
		return 0, 0, err
	}
	return cfg.Width, cfg.Height, nil
}

var nonIdentifier = regexp.MustCompile(`[^a-zA-Z0-9_]`)

// SanitizeName derives a scene-safe asset identifier from the uploaded
// filename: extension stripped, non-identifier characters replaced, a
// digit-leading name prefixed, and an empty result defaulted.
func SanitizeName(filename string) string {
	name := strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	name = nonIdentifier.ReplaceAllString(name, "_")
	if name != "" && name[0] >= '0' && name[0] <= '9' {
		name = "Asset_" + name
	}
	if name == "" {
		name = "UnnamedAsset"
	}
	return name
}
