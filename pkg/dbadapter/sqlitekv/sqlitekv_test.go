package sqlitekv

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/sonic-net/linkmgrd-go/pkg/dbadapter"
	"github.com/sonic-net/linkmgrd-go/pkg/errdefs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetGetRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linkmgrd.db")
	tbl, err := Open(path, dbadapter.TableMuxCableInfo)
	require.NoError(t, err)
	defer tbl.Close()

	ctx := context.Background()
	require.NoError(t, tbl.Set(ctx, "Ethernet0", dbadapter.FieldValues{"state": "active"}))

	fv, err := tbl.Get(ctx, "Ethernet0")
	require.NoError(t, err)
	assert.Equal(t, "active", fv["state"])
}

func TestGetMissingReturnsNotFound(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linkmgrd.db")
	tbl, err := Open(path, dbadapter.TableMuxCableInfo)
	require.NoError(t, err)
	defer tbl.Close()

	_, err = tbl.Get(context.Background(), "missing")
	assert.True(t, errdefs.IsNotFound(err))
}

func TestSetOverwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linkmgrd.db")
	tbl, err := Open(path, dbadapter.TableMuxCableInfo)
	require.NoError(t, err)
	defer tbl.Close()

	ctx := context.Background()
	require.NoError(t, tbl.Set(ctx, "k", dbadapter.FieldValues{"state": "active"}))
	require.NoError(t, tbl.Set(ctx, "k", dbadapter.FieldValues{"state": "standby"}))

	fv, err := tbl.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "standby", fv["state"])
}

func TestDel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "linkmgrd.db")
	tbl, err := Open(path, dbadapter.TableMuxCableInfo)
	require.NoError(t, err)
	defer tbl.Close()

	ctx := context.Background()
	require.NoError(t, tbl.Set(ctx, "k", dbadapter.FieldValues{"a": "b"}))
	require.NoError(t, tbl.Del(ctx, "k"))

	_, err = tbl.Get(ctx, "k")
	assert.True(t, errdefs.IsNotFound(err))
}
