package db_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/syndtr/goleveldb/leveldb"

	"equity-token/db"
)

func TestWrite_BatchAndPrefixScan(t *testing.T) {
	ldb, err := db.NewMemLevelDB()
	require.NoError(t, err)
	defer ldb.Close()

	batch := new(leveldb.Batch)
	batch.Put([]byte("index:2"), []byte("b"))
	batch.Put([]byte("index:1"), []byte("a"))
	batch.Put([]byte("state"), []byte("s"))
	require.NoError(t, ldb.Write(batch))

	v, err := ldb.Get([]byte("state"))
	require.NoError(t, err)
	require.Equal(t, "s", string(v))

	_, err = ldb.Get([]byte("missing"))
	require.True(t, errors.Is(err, db.ErrNotFound))

	iter := ldb.NewPrefixIterator([]byte("index:"))
	defer iter.Release()
	var got []string
	for iter.Next() {
		got = append(got, string(iter.Value()))
	}
	require.NoError(t, iter.Error())
	require.Equal(t, []string{"a", "b"}, got)
}
