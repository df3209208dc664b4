package builder

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roworks/meshusd/geometry"
	"github.com/roworks/meshusd/types"
	"github.com/roworks/meshusd/usd"
)

func quadBuffers() *geometry.Buffers {
	return &geometry.Buffers{
		Positions: [][3]float32{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}},
		UVs:       [][2]float32{{0, 1}, {1, 1}, {1, 0}, {0, 0}},
		Indices:   []int32{0, 1, 2, 0, 2, 3},
	}
}

func writeTestPNG(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "wall.png")
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, image.NewRGBA(image.Rect(0, 0, 4, 2))))
	return path
}

func TestBuild_BareMesh(t *testing.T) {
	scratch := t.TempDir()
	b := New(scratch, "usda", true, zap.NewNop())

	result, err := b.Build(Request{
		AssetName: "part",
		Filename:  "part.zip",
		FileSize:  1234,
		Buffers:   quadBuffers(),
	})
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(scratch, "usd_assets", "part.usda"), result.DocumentPath)
	assert.Equal(t, 2, result.TriangleCount)
	assert.False(t, result.HasMaterial)
	assert.FileExists(t, result.DocumentPath)

	root := result.Stage.GetPrimAtPath("/part")
	require.NotNil(t, root)
	assert.Equal(t, "Xform", root.TypeName())
	assert.Equal(t, "part.zip", root.Attribute("roworks:original_filename").Value)
	assert.Equal(t, 1234, root.Attribute("roworks:file_size").Value)

	mesh := result.Stage.GetPrimAtPath("/part/Mesh")
	require.NotNil(t, mesh)
	assert.Equal(t, []int32{3, 3}, mesh.Attribute("faceVertexCounts").Value)
	assert.Equal(t, [][3]float32{{0.8, 0.8, 0.8}},
		mesh.Attribute("primvars:displayColor").Value)
	assert.Equal(t, "faceVarying", mesh.Attribute("primvars:st").Interpolation)

	// extent 为包围盒两个角
	assert.Equal(t, [][3]float32{{0, 0, 0}, {1, 1, 0}}, mesh.Attribute("extent").Value)

	// generateNormals=true 时补面法线
	require.NotNil(t, mesh.Attribute("normals"))
	assert.Len(t, mesh.Attribute("normals").Value.([][3]float32), 6)
}

func TestBuild_NormalsDisabled(t *testing.T) {
	b := New(t.TempDir(), "usda", false, zap.NewNop())

	result, err := b.Build(Request{AssetName: "part", Buffers: quadBuffers()})
	require.NoError(t, err)

	mesh := result.Stage.GetPrimAtPath("/part/Mesh")
	assert.Nil(t, mesh.Attribute("normals"))
}

func TestBuild_EmptyGeometryFails(t *testing.T) {
	b := New(t.TempDir(), "usda", true, zap.NewNop())

	_, err := b.Build(Request{AssetName: "part", Buffers: &geometry.Buffers{}})
	require.Error(t, err)
	assert.Equal(t, types.ErrBuildFailed, types.GetErrorCode(err))

	_, err = b.Build(Request{AssetName: "part"})
	require.Error(t, err)
}

func TestBuild_MaterialDiffuseColor(t *testing.T) {
	b := New(t.TempDir(), "usda", true, zap.NewNop())

	result, err := b.Build(Request{
		AssetName: "part",
		Buffers:   quadBuffers(),
		Material: &geometry.Material{
			Name:       "Painted",
			Diffuse:    [3]float32{0.2, 0.4, 0.6},
			HasDiffuse: true,
		},
	})
	require.NoError(t, err)
	assert.True(t, result.HasMaterial)

	surface := result.Stage.GetPrimAtPath("/part/Material/PreviewSurface")
	require.NotNil(t, surface)
	assert.Equal(t, "UsdPreviewSurface", surface.Attribute("info:id").Value)
	assert.Equal(t, float32(0.5), surface.Attribute("inputs:roughness").Value)
	assert.Equal(t, float32(0.0), surface.Attribute("inputs:metallic").Value)
	assert.Equal(t, [3]float32{0.2, 0.4, 0.6}, surface.Attribute("inputs:diffuseColor").Value)

	mesh := result.Stage.GetPrimAtPath("/part/Mesh")
	binding := mesh.Attribute("material:binding")
	require.NotNil(t, binding)
	assert.Equal(t, usd.TypeRelationship, binding.Type)
	assert.Equal(t, "/part/Material", binding.Value)
}

func TestBuild_TextureGraph(t *testing.T) {
	scratch := t.TempDir()
	texture := writeTestPNG(t, scratch)
	b := New(scratch, "usda", true, zap.NewNop())

	result, err := b.Build(Request{
		AssetName: "part",
		Buffers:   quadBuffers(),
		Textures:  []string{texture},
	})
	require.NoError(t, err)
	assert.True(t, result.HasMaterial)

	sampler := result.Stage.GetPrimAtPath("/part/Material/DiffuseTexture")
	require.NotNil(t, sampler)
	assert.Equal(t, "UsdUVTexture", sampler.Attribute("info:id").Value)
	assert.Equal(t, texture, sampler.Attribute("inputs:file").Value)
	assert.Equal(t, "/part/Material/stReader.outputs:result",
		sampler.Attribute("inputs:st").Connection)

	// 纹理探测结果记入 customData
	assert.Equal(t, 4, sampler.Metadata("roworks:texture_width"))
	assert.Equal(t, 2, sampler.Metadata("roworks:texture_height"))

	reader := result.Stage.GetPrimAtPath("/part/Material/stReader")
	require.NotNil(t, reader)
	assert.Equal(t, "UsdPrimvarReader_float2", reader.Attribute("info:id").Value)
	assert.Equal(t, "st", reader.Attribute("inputs:varname").Value)

	surface := result.Stage.GetPrimAtPath("/part/Material/PreviewSurface")
	assert.Equal(t, "/part/Material/DiffuseTexture.outputs:rgb",
		surface.Attribute("inputs:diffuseColor").Connection)
}

func TestBuild_UnreadableTextureStillBuilds(t *testing.T) {
	scratch := t.TempDir()
	bogus := filepath.Join(scratch, "not_an_image.png")
	require.NoError(t, os.WriteFile(bogus, []byte("not a png"), 0o644))

	b := New(scratch, "usda", true, zap.NewNop())
	result, err := b.Build(Request{
		AssetName: "part",
		Buffers:   quadBuffers(),
		Textures:  []string{bogus},
	})
	require.NoError(t, err)

	// 探测失败只是少了尺寸元数据，图仍然建出来
	sampler := result.Stage.GetPrimAtPath("/part/Material/DiffuseTexture")
	require.NotNil(t, sampler)
	assert.Nil(t, sampler.Metadata("roworks:texture_width"))
}

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"part.zip", "part"},
		{"my model v2.zip", "my_model_v2"},
		{"weird-chars!@#.zip", "weird_chars___"},
		{"3dscan.zip", "Asset_3dscan"},
		{".zip", "UnnamedAsset"},
		{"études.zip", "_tudes"},
		{"dir/nested.zip", "nested"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, SanitizeName(tt.in))
		})
	}
}
