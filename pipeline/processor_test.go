package pipeline

import (
	"archive/zip"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/roworks/meshusd/archive"
	"github.com/roworks/meshusd/attach"
	"github.com/roworks/meshusd/builder"
	"github.com/roworks/meshusd/registry"
	"github.com/roworks/meshusd/types"
	"github.com/roworks/meshusd/usd"
)

const cubeOBJ = `
v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
vt 0 0
vt 1 0
vt 1 1
vt 0 1
f 1/1 2/2 3/3 4/4
`

func writeArchive(t *testing.T, dir, name string, entries map[string]string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()

	w := zip.NewWriter(f)
	for entryName, content := range entries {
		entry, err := w.Create(entryName)
		require.NoError(t, err)
		_, err = entry.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return path
}

// newProcessor 装配一条接近生产布线的流水线，场景在进程内且立即就绪
func newProcessor(t *testing.T, scratch string) (*Processor, *registry.Registry, *usd.LiveContext) {
	t.Helper()
	logger := zap.NewNop()

	scene, err := usd.NewLiveContext("/World", logger)
	require.NoError(t, err)

	engine := attach.NewEngine(scene, attach.Config{
		ReadyTimeout: 200 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
		AssetRoot:    "/World/RoWorks/Assets",
	}, logger)

	reg := registry.New(logger)
	p := New(
		archive.NewValidator(scratch, logger),
		builder.New(scratch, "usda", true, logger),
		engine, reg, nil, nil, logger,
	)
	return p, reg, scene
}

func TestProcess_FullUpload(t *testing.T) {
	scratch := t.TempDir()
	archivePath := writeArchive(t, scratch, "my part.zip", map[string]string{
		"part.obj": cubeOBJ,
		"part.mtl": "newmtl m\nKd 0.9 0.1 0.1\n",
	})

	p, reg, scene := newProcessor(t, scratch)

	asset, err := p.Process(context.Background(), archivePath, "my part.zip", 2048)
	require.NoError(t, err)

	assert.Equal(t, "my_part", asset.AssetName)
	assert.Equal(t, "my part.zip", asset.Filename)
	assert.Equal(t, int64(2048), asset.FileSize)
	assert.FileExists(t, asset.DocumentPath)

	// 首选策略直接命中
	assert.True(t, asset.Attachment.Succeeded)
	assert.Equal(t, types.AttachReferenceCommand, asset.Attachment.Method)
	assert.Equal(t, "/World/RoWorks/Assets/my_part", asset.ScenePrimPath)

	// 场景里挂上了引用
	prim := scene.Stage().GetPrimAtPath("/World/RoWorks/Assets/my_part")
	require.NotNil(t, prim)
	assert.Equal(t, []string{asset.DocumentPath}, prim.References())

	// 注册表有记录
	require.Len(t, reg.List(), 1)
	assert.Equal(t, "my_part", reg.List()[0].AssetName)

	// 文档内容是 usda 文本
	data, err := os.ReadFile(asset.DocumentPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "#usda 1.0")
	assert.Contains(t, string(data), `def Mesh "Mesh"`)
}

func TestProcess_NoOBJFails(t *testing.T) {
	scratch := t.TempDir()
	archivePath := writeArchive(t, scratch, "empty.zip", map[string]string{
		"readme.txt": "nothing here",
	})

	p, reg, _ := newProcessor(t, scratch)

	_, err := p.Process(context.Background(), archivePath, "empty.zip", 100)
	require.Error(t, err)
	assert.Equal(t, types.ErrValidationFailed, types.GetErrorCode(err))
	assert.Empty(t, reg.List())
}

func TestProcess_BrokenGeometryFails(t *testing.T) {
	scratch := t.TempDir()
	archivePath := writeArchive(t, scratch, "broken.zip", map[string]string{
		"broken.obj": "v 0 nope 0\n",
	})

	p, reg, _ := newProcessor(t, scratch)

	_, err := p.Process(context.Background(), archivePath, "broken.zip", 100)
	require.Error(t, err)
	assert.Equal(t, types.ErrGeometryParse, types.GetErrorCode(err))
	assert.Empty(t, reg.List())
}

func TestProcess_EmptyGeometryFails(t *testing.T) {
	scratch := t.TempDir()
	archivePath := writeArchive(t, scratch, "hollow.zip", map[string]string{
		"hollow.obj": "# vertices only\nv 0 0 0\nv 1 0 0\n",
	})

	p, _, _ := newProcessor(t, scratch)

	_, err := p.Process(context.Background(), archivePath, "hollow.zip", 100)
	require.Error(t, err)
	assert.Equal(t, types.ErrBuildFailed, types.GetErrorCode(err))
}

func TestProcess_BrokenMaterialDegrades(t *testing.T) {
	scratch := t.TempDir()
	archivePath := writeArchive(t, scratch, "badmtl.zip", map[string]string{
		"part.obj": cubeOBJ,
		"part.mtl": "newmtl broken\nKd x y z\n",
	})

	p, _, _ := newProcessor(t, scratch)

	// 坏材质不让上传失败
	asset, err := p.Process(context.Background(), archivePath, "badmtl.zip", 100)
	require.NoError(t, err)
	assert.True(t, asset.Attachment.Succeeded)
}

func TestProcess_SceneNeverReadyStillRecords(t *testing.T) {
	scratch := t.TempDir()
	archivePath := writeArchive(t, scratch, "part.zip", map[string]string{
		"part.obj": cubeOBJ,
	})

	logger := zap.NewNop()
	engine := attach.NewEngine(nil, attach.Config{
		ReadyTimeout: 50 * time.Millisecond,
		PollInterval: 10 * time.Millisecond,
		AssetRoot:    "/World/RoWorks/Assets",
	}, logger)
	reg := registry.New(logger)
	p := New(
		archive.NewValidator(scratch, logger),
		builder.New(scratch, "usda", true, logger),
		engine, reg, nil, nil, logger,
	)

	asset, err := p.Process(context.Background(), archivePath, "part.zip", 100)
	require.NoError(t, err)

	// 挂载失败仍然成功返回：文档已落盘，等待手动导入
	assert.False(t, asset.Attachment.Succeeded)
	assert.Equal(t, types.AttachNone, asset.Attachment.Method)
	assert.FileExists(t, asset.DocumentPath)
	require.Len(t, reg.List(), 1)
	assert.Equal(t, "manual_import_required", reg.SceneObjects()[0].ImportStatus)
}

func TestAnalyzeArchive(t *testing.T) {
	scratch := t.TempDir()
	archivePath := writeArchive(t, scratch, "part.zip", map[string]string{
		"part.obj": cubeOBJ,
		"wall.png": "png",
	})

	p, _, _ := newProcessor(t, scratch)

	files, err := p.AnalyzeArchive(archivePath, "part.zip")
	require.NoError(t, err)
	assert.Equal(t, "part.obj", filepath.Base(files.GeometryFile))
	assert.Len(t, files.TextureFiles, 1)
}
