package checkpoint

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "notex/pkg/errors"
	"notex/pkg/fingerprint"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(filepath.Join(t.TempDir(), "checkpoint.json"))
}

func TestRecordBeforeLoadIsAnError(t *testing.T) {
	store := newTestStore(t)
	fp := fingerprint.Compute([]byte("x"))

	assert.Error(t, store.RecordSuccess(1, fp, "/out/p1.tex", 1))
	assert.Error(t, store.RecordFailure(1, fp, "boom", 1))
	assert.Nil(t, store.Get(1))
	assert.False(t, store.Exists(), "misuse must not create a checkpoint file")
}

func TestLoadMissingFile(t *testing.T) {
	store := newTestStore(t)

	set, err := store.Load("/notes/lecture.pdf")
	require.NoError(t, err)
	assert.Equal(t, "/notes/lecture.pdf", set.PDF)
	assert.Empty(t, set.Pages)
}

func TestRecordSuccessPersists(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Load("/notes/lecture.pdf")
	require.NoError(t, err)

	fp := fingerprint.Compute([]byte("page one"))
	require.NoError(t, store.RecordSuccess(1, fp, "/out/notes_page1.tex", 1))

	// A fresh store against the same file must see the record
	reloaded := NewStore(store.Path())
	_, err = reloaded.Load("/notes/lecture.pdf")
	require.NoError(t, err)

	rec := reloaded.Get(1)
	require.NotNil(t, rec)
	assert.Equal(t, StatusSucceeded, rec.Status)
	assert.Equal(t, fp, rec.Fingerprint)
	assert.Equal(t, "/out/notes_page1.tex", rec.Result)
	assert.Equal(t, 1, rec.Attempts)
}

func TestRecordFailurePersists(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Load("/notes/lecture.pdf")
	require.NoError(t, err)

	fp := fingerprint.Compute([]byte("page two"))
	require.NoError(t, store.RecordFailure(2, fp, "endpoint returned 500", 3))

	reloaded := NewStore(store.Path())
	_, err = reloaded.Load("/notes/lecture.pdf")
	require.NoError(t, err)

	rec := reloaded.Get(2)
	require.NotNil(t, rec)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Equal(t, 3, rec.Attempts)
	assert.Equal(t, "endpoint returned 500", rec.LastError)
	assert.Empty(t, rec.Result)
}

func TestIsUpToDate(t *testing.T) {
	fp := fingerprint.Compute([]byte("content"))
	changed := fingerprint.Compute([]byte("content v2"))

	succeeded := &Record{Status: StatusSucceeded, Fingerprint: fp}
	assert.True(t, succeeded.IsUpToDate(fp))
	assert.False(t, succeeded.IsUpToDate(changed))

	failed := &Record{Status: StatusFailed, Fingerprint: fp}
	assert.False(t, failed.IsUpToDate(fp))
}

func TestFailureSupersedesSuccess(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Load("/notes/lecture.pdf")
	require.NoError(t, err)

	fp := fingerprint.Compute([]byte("v1"))
	require.NoError(t, store.RecordSuccess(1, fp, "/out/p1.tex", 1))

	fp2 := fingerprint.Compute([]byte("v2"))
	require.NoError(t, store.RecordFailure(1, fp2, "boom", 2))

	rec := store.Get(1)
	require.NotNil(t, rec)
	assert.Equal(t, StatusFailed, rec.Status)
	assert.Empty(t, rec.Result, "a failed record must not reference a result")
	assert.False(t, rec.IsUpToDate(fp2))
}

func TestLoadCorruptFile(t *testing.T) {
	store := newTestStore(t)
	require.NoError(t, os.WriteFile(store.Path(), []byte("{not json"), 0644))

	_, err := store.Load("/notes/lecture.pdf")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errs.ErrCorruptCheckpoint))
}

func TestLoadDifferentDocumentStartsFresh(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Load("/notes/old.pdf")
	require.NoError(t, err)
	require.NoError(t, store.RecordSuccess(1, fingerprint.Compute([]byte("x")), "/out/p1.tex", 1))

	reloaded := NewStore(store.Path())
	set, err := reloaded.Load("/notes/new.pdf")
	require.NoError(t, err)
	assert.Equal(t, "/notes/new.pdf", set.PDF)
	assert.Empty(t, set.Pages)
}

func TestAtomicSaveLeavesNoTempFile(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Load("/notes/lecture.pdf")
	require.NoError(t, err)
	require.NoError(t, store.RecordSuccess(1, fingerprint.Compute([]byte("x")), "/out/p1.tex", 1))

	_, err = os.Stat(store.Path() + ".tmp")
	assert.True(t, os.IsNotExist(err))
	assert.True(t, store.Exists())
}

func TestClear(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Load("/notes/lecture.pdf")
	require.NoError(t, err)
	require.NoError(t, store.RecordSuccess(1, fingerprint.Compute([]byte("x")), "/out/p1.tex", 1))

	require.NoError(t, store.Clear())
	assert.False(t, store.Exists())

	// Clearing an already-missing checkpoint is fine
	require.NoError(t, store.Clear())
}

func TestSummary(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Load("/notes/lecture.pdf")
	require.NoError(t, err)

	require.NoError(t, store.RecordSuccess(1, fingerprint.Compute([]byte("a")), "/out/p1.tex", 1))
	require.NoError(t, store.RecordSuccess(2, fingerprint.Compute([]byte("b")), "/out/p2.tex", 2))
	require.NoError(t, store.RecordFailure(3, fingerprint.Compute([]byte("c")), "boom", 3))

	counts := store.Summary()
	assert.Equal(t, 2, counts[StatusSucceeded])
	assert.Equal(t, 1, counts[StatusFailed])
}

func TestInspect(t *testing.T) {
	store := newTestStore(t)

	t.Run("MissingFile", func(t *testing.T) {
		set, err := store.Inspect()
		require.NoError(t, err)
		assert.Nil(t, set)
	})

	t.Run("ExistingFile", func(t *testing.T) {
		_, err := store.Load("/notes/lecture.pdf")
		require.NoError(t, err)
		require.NoError(t, store.RecordSuccess(1, fingerprint.Compute([]byte("a")), "/out/p1.tex", 1))

		set, err := NewStore(store.Path()).Inspect()
		require.NoError(t, err)
		require.NotNil(t, set)
		assert.Equal(t, "/notes/lecture.pdf", set.PDF)
		assert.Len(t, set.Pages, 1)
	})

	t.Run("CorruptFile", func(t *testing.T) {
		bad := NewStore(filepath.Join(t.TempDir(), "checkpoint.json"))
		require.NoError(t, os.WriteFile(bad.Path(), []byte("garbage"), 0644))

		_, err := bad.Inspect()
		assert.True(t, errors.Is(err, errs.ErrCorruptCheckpoint))
	})
}
