package render_test

import (
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jacquetc/qleany/pkg/domain"
	"github.com/jacquetc/qleany/pkg/render"
	"github.com/jacquetc/qleany/pkg/snapshot"
)

func TestRenderFromCustomFS(t *testing.T) {
	fsys := fstest.MapFS{
		"greet.tmpl": &fstest.MapFile{
			Data: []byte("mod {{snake .Global.ApplicationName}}; struct {{pascal .Global.ApplicationName}};"),
		},
	}
	r, err := render.New(fsys)
	require.NoError(t, err)

	out, err := r.Render("greet.tmpl", &snapshot.Snapshot{
		Global: snapshot.GlobalVM{ApplicationName: "book shop"},
	})
	require.NoError(t, err)
	assert.Equal(t, "mod book_shop; struct BookShop;", out)
}

func TestDefaultTemplatesParse(t *testing.T) {
	r, err := render.Default()
	require.NoError(t, err)

	for _, name := range []string{
		"rust/cargo.toml.tmpl",
		"rust/entity.rs.tmpl",
		"rust/use_case.rs.tmpl",
		"cpp_qt/cmakelists.tmpl",
		"cpp_qt/entity.h.tmpl",
		"cpp_qt/feature_controller.cpp.tmpl",
	} {
		assert.True(t, r.Has(name), name)
	}
	assert.False(t, r.Has("rust/missing.tmpl"))
}

func TestRenderEntityTemplate(t *testing.T) {
	r, err := render.Default()
	require.NoError(t, err)

	snap := &snapshot.Snapshot{
		Global: snapshot.GlobalVM{ApplicationName: "bookshop"},
		Entities: []snapshot.EntityVM{{
			Name: snapshot.DeriveNameForms("UserAccount"),
			Fields: []snapshot.FieldVM{
				{Name: snapshot.DeriveNameForms("display_name"), Type: "string"},
			},
		}},
	}
	out, err := r.Render("rust/entity.rs.tmpl", snap)
	require.NoError(t, err)
	assert.Contains(t, out, "pub struct UserAccount {")
	assert.Contains(t, out, "pub display_name: string,")
}

func TestRenderUnknownTemplate(t *testing.T) {
	r, err := render.Default()
	require.NoError(t, err)

	_, err = r.Render("nope.tmpl", &snapshot.Snapshot{})
	assert.ErrorIs(t, err, domain.ErrTemplateNotFound)
}

func TestRenderFailureIsReported(t *testing.T) {
	r, err := render.Default()
	require.NoError(t, err)

	// Entity-scoped templates index into Entities; an empty slice fails.
	_, err = r.Render("rust/entity.rs.tmpl", &snapshot.Snapshot{})
	assert.ErrorIs(t, err, domain.ErrTemplateRenderFailed)
}
