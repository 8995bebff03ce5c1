package docstore

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwantia/docstore/acl"
	"github.com/mwantia/docstore/data"
	"github.com/mwantia/docstore/log"
)

var allowAll = acl.AllowAll{}

func newTestStorage(t *testing.T, opts ...Option) *Storage {
	t.Helper()

	opts = append([]Option{WithLogger(log.Discard())}, opts...)
	s, err := New(t.TempDir(), opts...)
	require.NoError(t, err)
	require.NoError(t, s.LoadEntries(t.Context()))
	return s
}

func newMetadata(fileType data.FileType, publisher string, public bool) *data.FileMetadata {
	md := data.NewFileMetadata(fileType, publisher)
	md.IsPublic = public
	md.Name["en"] = "File " + md.Id.String()[:8]
	return md
}

func insert(t *testing.T, s *Storage, md *data.FileMetadata, content string) {
	t.Helper()
	require.NoError(t, s.InsertFile(t.Context(), content, md, false, allowAll))
}

func stateIds(states []*data.FileState) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(states))
	for _, state := range states {
		ids = append(ids, state.Metadata.Id)
	}
	return ids
}

func TestStorage_InsertRoundTrip(t *testing.T) {
	s := newTestStorage(t)
	md := newMetadata(data.FileTypeDatasetRegistration, "pub-a", false)
	md.AdditionalValues["themes"] = []string{"env", "health"}

	insert(t, s, md, "<a> <b> <c> .")

	state, err := s.GetFileState(t.Context(), md.Id, allowAll)
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, md, state.Metadata)
	assert.Equal(t, "<a> <b> <c> .", state.ContentString())

	assert.FileExists(t, filepath.Join(s.Root(), "protected", idHex(md.Id)))
	assert.FileExists(t, filepath.Join(s.Root(), "protected", idHex(md.Id)+".metadata"))

	// returned metadata is a copy
	state.Metadata.Name["en"] = "changed"
	assert.NotEqual(t, "changed", s.GetFileMetadata(t.Context(), md.Id, allowAll).Name["en"])
}

func TestStorage_PublicPathPolicy(t *testing.T) {
	s := newTestStorage(t)

	public := newMetadata(data.FileTypeDatasetRegistration, "pub-a", true)
	harvested := newMetadata(data.FileTypeDatasetRegistration, "pub-a", true)
	harvested.IsHarvested = true
	generic := newMetadata(data.FileTypeUnknown, "pub-a", true)

	insert(t, s, public, "public")
	insert(t, s, harvested, "harvested")
	insert(t, s, generic, "generic")

	assert.FileExists(t, filepath.Join(s.Root(), "public", "dataset_registration", idHex(public.Id)+".ttl"))
	assert.FileExists(t, filepath.Join(s.Root(), "protected", idHex(harvested.Id)))
	assert.FileExists(t, filepath.Join(s.Root(), "protected", idHex(generic.Id)))
	assert.FileExists(t, filepath.Join(s.Root(), "protected", idHex(public.Id)+".metadata"))
}

func TestStorage_ForbiddenLooksAbsent(t *testing.T) {
	s := newTestStorage(t)
	md := newMetadata(data.FileTypeDatasetRegistration, "pub-a", false)
	insert(t, s, md, "secret")

	other := acl.NewPublisher("pub-b")
	for _, id := range []uuid.UUID{md.Id, uuid.New()} {
		state, err := s.GetFileState(t.Context(), id, other)
		assert.NoError(t, err)
		assert.Nil(t, state)

		assert.Nil(t, s.GetFileMetadata(t.Context(), id, other))

		stream, err := s.OpenReadStream(t.Context(), id, other)
		assert.NoError(t, err)
		assert.Nil(t, stream)
	}

	assert.NotNil(t, s.GetFileMetadata(t.Context(), md.Id, acl.NewPublisher("pub-a")))

	response, err := s.GetFileStates(t.Context(), nil, other)
	require.NoError(t, err)
	assert.Empty(t, response.Files)
	assert.Zero(t, response.TotalCount)
}

func TestStorage_InsertAuthorization(t *testing.T) {
	s := newTestStorage(t)
	md := newMetadata(data.FileTypeDatasetRegistration, "pub-a", false)

	err := s.InsertFile(t.Context(), "x", md, false, acl.NewPublisher("pub-b"))
	assert.ErrorIs(t, err, data.ErrUnauthorized)

	require.NoError(t, s.InsertFile(t.Context(), "x", md, false, acl.NewPublisher("pub-a")))

	// taking over a file by changing its publisher requires access to both versions
	stolen := md.Clone()
	stolen.Publisher = "pub-b"
	err = s.InsertFile(t.Context(), "y", stolen, true, acl.NewPublisher("pub-b"))
	assert.ErrorIs(t, err, data.ErrUnauthorized)
	assert.Equal(t, "pub-a", s.GetFileMetadata(t.Context(), md.Id, allowAll).Publisher)
}

func TestStorage_OverwriteDisabledLeavesFileUnchanged(t *testing.T) {
	s := newTestStorage(t)
	md := newMetadata(data.FileTypeCodelist, "pub-a", false)
	insert(t, s, md, "original")

	sidecar, err := os.ReadFile(s.metadataPath(md.Id))
	require.NoError(t, err)

	changed := md.Clone()
	changed.Name["en"] = "changed"
	err = s.InsertFile(t.Context(), "replacement", changed, false, allowAll)
	assert.ErrorIs(t, err, data.ErrExist)
	assert.True(t, data.IsConflict(err))

	after, err := os.ReadFile(s.metadataPath(md.Id))
	require.NoError(t, err)
	assert.Equal(t, sidecar, after)

	state, err := s.GetFileState(t.Context(), md.Id, allowAll)
	require.NoError(t, err)
	assert.Equal(t, "original", state.ContentString())
	assert.Equal(t, md.Name["en"], state.Metadata.Name["en"])

	require.NoError(t, s.InsertFile(t.Context(), "replacement", changed, true, allowAll))
	state, err = s.GetFileState(t.Context(), md.Id, allowAll)
	require.NoError(t, err)
	assert.Equal(t, "replacement", state.ContentString())
}

func TestStorage_OverwriteWhileReadingFails(t *testing.T) {
	s := newTestStorage(t)
	md := newMetadata(data.FileTypeCodelist, "pub-a", false)
	insert(t, s, md, "original")

	stream, err := s.OpenReadStream(t.Context(), md.Id, allowAll)
	require.NoError(t, err)
	require.NotNil(t, stream)

	err = s.InsertFile(t.Context(), "replacement", md, true, allowAll)
	assert.ErrorIs(t, err, data.ErrInUse)

	require.NoError(t, stream.Close())
	require.NoError(t, s.InsertFile(t.Context(), "replacement", md, true, allowAll))
}

func TestStorage_ParentValidation(t *testing.T) {
	s := newTestStorage(t)

	orphan := newMetadata(data.FileTypeDistributionRegistration, "pub-a", false)
	missing := uuid.New()
	orphan.ParentFile = &missing
	err := s.InsertFile(t.Context(), "x", orphan, false, allowAll)
	assert.ErrorIs(t, err, data.ErrParentNotExist)
	assert.ErrorIs(t, err, data.ErrInvalid)

	a := newMetadata(data.FileTypeDatasetRegistration, "pub-a", false)
	insert(t, s, a, "a")
	b := newMetadata(data.FileTypeDistributionRegistration, "pub-a", false)
	b.ParentFile = &a.Id
	insert(t, s, b, "b")

	cycle := a.Clone()
	cycle.ParentFile = &b.Id
	err = s.UpdateMetadata(t.Context(), cycle, allowAll)
	assert.ErrorIs(t, err, data.ErrInvalid)
}

func TestStorage_CascadingDeleteIsAllOrNothing(t *testing.T) {
	s := newTestStorage(t)

	parent := newMetadata(data.FileTypeDatasetRegistration, "pub-a", false)
	insert(t, s, parent, "parent")

	children := make([]*data.FileMetadata, 0)
	for i := 0; i < 3; i++ {
		child := newMetadata(data.FileTypeDistributionRegistration, "pub-a", false)
		child.ParentFile = &parent.Id
		insert(t, s, child, "child")
		children = append(children, child)
	}

	foreign := newMetadata(data.FileTypeDistributionRegistration, "pub-b", false)
	foreign.ParentFile = &children[0].Id
	insert(t, s, foreign, "grandchild")

	err := s.DeleteFile(t.Context(), parent.Id, acl.NewPublisher("pub-a"))
	assert.ErrorIs(t, err, data.ErrUnauthorized)
	assert.Equal(t, 5, s.Stats().Entries)
	for _, md := range append(children, parent, foreign) {
		assert.NotNil(t, s.GetFileMetadata(t.Context(), md.Id, allowAll))
		assert.FileExists(t, s.metadataPath(md.Id))
	}

	require.NoError(t, s.DeleteFile(t.Context(), parent.Id, allowAll))
	assert.Zero(t, s.Stats().Entries)
	for _, md := range append(children, parent, foreign) {
		assert.Nil(t, s.GetFileMetadata(t.Context(), md.Id, allowAll))
		assert.NoFileExists(t, s.metadataPath(md.Id))
		assert.NoFileExists(t, s.contentPath(md))
	}

	assert.ErrorIs(t, s.DeleteFile(t.Context(), parent.Id, allowAll), data.ErrNotExist)
}

func TestStorage_QueryPaging(t *testing.T) {
	s := newTestStorage(t)
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	expected := make([]uuid.UUID, 0)
	for i := 0; i < 10; i++ {
		md := newMetadata(data.FileTypeDatasetRegistration, "pub-p", i%2 == 0)
		md.Created = base.Add(time.Duration(i) * time.Hour)
		md.LastModified = md.Created
		insert(t, s, md, "dataset")
		expected = append(expected, md.Id)
	}
	// noise: other type, other publisher, private foreign file
	insert(t, s, newMetadata(data.FileTypeDistributionRegistration, "pub-p", true), "x")
	insert(t, s, newMetadata(data.FileTypeDatasetRegistration, "pub-q", true), "x")

	response, err := s.GetFileStates(t.Context(), &data.FileStorageQuery{
		OnlyTypes:        []data.FileType{data.FileTypeDatasetRegistration},
		OnlyPublishers:   []string{"pub-p"},
		OrderDefinitions: []data.OrderDefinition{{Property: data.OrderByCreated}},
		SkipResults:      4,
		MaxResults:       3,
	}, acl.NewPublisher("pub-p"))
	require.NoError(t, err)

	assert.Equal(t, 10, response.TotalCount)
	assert.Equal(t, expected[4:7], stateIds(response.Files))

	// default order is last modified descending
	response, err = s.GetFileStates(t.Context(), &data.FileStorageQuery{
		OnlyTypes:      []data.FileType{data.FileTypeDatasetRegistration},
		OnlyPublishers: []string{"pub-p"},
		MaxResults:     2,
	}, allowAll)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{expected[9], expected[8]}, stateIds(response.Files))

	// only published halves the set
	response, err = s.GetFileStates(t.Context(), &data.FileStorageQuery{
		OnlyTypes:      []data.FileType{data.FileTypeDatasetRegistration},
		OnlyPublishers: []string{"pub-p"},
		OnlyPublished:  true,
	}, allowAll)
	require.NoError(t, err)
	assert.Equal(t, 5, response.TotalCount)

	// skipping past the end is empty, not an error
	response, err = s.GetFileStates(t.Context(), &data.FileStorageQuery{SkipResults: 100}, allowAll)
	require.NoError(t, err)
	assert.Empty(t, response.Files)
	assert.Equal(t, 12, response.TotalCount)
}

func TestStorage_QueryOrdering(t *testing.T) {
	s := newTestStorage(t)

	names := []string{"beta", "Alpha", "charlie"}
	ids := make(map[string]uuid.UUID)
	for _, name := range names {
		md := newMetadata(data.FileTypeCodelist, "pub-a", true)
		md.Name = map[string]string{"en": name}
		insert(t, s, md, name)
		ids[name] = md.Id
	}

	response, err := s.GetFileStates(t.Context(), &data.FileStorageQuery{
		Language:         "en",
		OrderDefinitions: []data.OrderDefinition{{Property: data.OrderByName}},
	}, allowAll)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{ids["Alpha"], ids["beta"], ids["charlie"]}, stateIds(response.Files))

	byIds := []uuid.UUID{ids["charlie"], ids["Alpha"], ids["beta"]}
	response, err = s.GetFileStates(t.Context(), &data.FileStorageQuery{
		OnlyIds:          byIds,
		OrderDefinitions: []data.OrderDefinition{{Property: data.OrderByRelevance}},
	}, allowAll)
	require.NoError(t, err)
	assert.Equal(t, byIds, stateIds(response.Files))

	_, err = s.GetFileStates(t.Context(), &data.FileStorageQuery{
		OrderDefinitions: []data.OrderDefinition{{Property: data.OrderProperty(42)}},
	}, allowAll)
	assert.ErrorIs(t, err, data.ErrUnsupportedOrder)
}

func TestStorage_Facets(t *testing.T) {
	s := newTestStorage(t)

	add := func(publisher string, public bool, themes ...string) {
		md := newMetadata(data.FileTypeDatasetRegistration, publisher, public)
		md.AdditionalValues["themes"] = themes
		insert(t, s, md, "x")
	}
	add("pub-a", true, "env", "health")
	add("pub-a", true, "env")
	add("pub-b", true, "health", "health")
	add("pub-b", true, "transport")
	add("pub-c", false, "env") // invisible to pub-a

	response, err := s.GetFileStates(t.Context(), &data.FileStorageQuery{
		AdditionalFilters: map[string][]string{"themes": {"env"}},
		RequiredFacets:    []string{"themes", data.FacetPublishers},
	}, acl.NewPublisher("pub-a"))
	require.NoError(t, err)
	require.Len(t, response.Facets, 2)

	assert.Equal(t, 2, response.TotalCount)

	themes := response.Facets[0]
	assert.Equal(t, "themes", themes.Id)
	assert.Equal(t, map[string]int{"env": 2, "health": 2, "transport": 1}, themes.Values)

	publishers := response.Facets[1]
	assert.Equal(t, data.FacetPublishers, publishers.Id)
	assert.Equal(t, map[string]int{"pub-a": 2}, publishers.Values)
}

func TestStorage_FacetsExcludeOnlyTheirOwnFilter(t *testing.T) {
	s := newTestStorage(t)

	add := func(theme, format string) {
		md := newMetadata(data.FileTypeDatasetRegistration, "pub-a", true)
		md.AdditionalValues["themes"] = []string{theme}
		md.AdditionalValues["format"] = []string{format}
		insert(t, s, md, "x")
	}
	add("env", "csv")
	add("env", "json")
	add("health", "csv")
	add("health", "json")
	add("env", "csv")

	response, err := s.GetFileStates(t.Context(), &data.FileStorageQuery{
		AdditionalFilters: map[string][]string{
			"themes": {"env"},
			"format": {"csv"},
		},
		RequiredFacets: []string{"themes", "format"},
	}, allowAll)
	require.NoError(t, err)
	require.Len(t, response.Facets, 2)

	assert.Equal(t, 2, response.TotalCount)

	// themes counted under format=csv only
	assert.Equal(t, "themes", response.Facets[0].Id)
	assert.Equal(t, map[string]int{"env": 2, "health": 1}, response.Facets[0].Values)

	// format counted under themes=env only
	assert.Equal(t, "format", response.Facets[1].Id)
	assert.Equal(t, map[string]int{"csv": 2, "json": 1}, response.Facets[1].Values)
}

func TestStorage_IncludeDependentFiles(t *testing.T) {
	s := newTestStorage(t)

	parent := newMetadata(data.FileTypeDatasetRegistration, "pub-a", true)
	insert(t, s, parent, "parent")
	visibleChild := newMetadata(data.FileTypeDistributionRegistration, "pub-a", true)
	visibleChild.ParentFile = &parent.Id
	insert(t, s, visibleChild, "child")
	hiddenChild := newMetadata(data.FileTypeDistributionRegistration, "pub-b", false)
	hiddenChild.ParentFile = &parent.Id
	insert(t, s, hiddenChild, "hidden")
	grandChild := newMetadata(data.FileTypeDistributionRegistration, "pub-a", true)
	grandChild.ParentFile = &visibleChild.Id
	insert(t, s, grandChild, "grandchild")

	response, err := s.GetFileStates(t.Context(), &data.FileStorageQuery{
		OnlyIds:               []uuid.UUID{parent.Id},
		IncludeDependentFiles: true,
	}, acl.NewPublisher("pub-a"))
	require.NoError(t, err)
	require.Len(t, response.Files, 1)

	dependents := response.Files[0].DependentFiles
	require.Len(t, dependents, 1)
	assert.Equal(t, visibleChild.Id, dependents[0].Metadata.Id)
	assert.Equal(t, "child", dependents[0].ContentString())
	assert.Empty(t, dependents[0].DependentFiles)

	response, err = s.GetFileStates(t.Context(), &data.FileStorageQuery{ParentFile: &parent.Id}, allowAll)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{visibleChild.Id, hiddenChild.Id}, stateIds(response.Files))
}

func TestStorage_MaxInlineSize(t *testing.T) {
	s := newTestStorage(t, WithMaxInlineSize(4))
	small := newMetadata(data.FileTypeCodelist, "pub-a", true)
	large := newMetadata(data.FileTypeCodelist, "pub-a", true)
	insert(t, s, small, "abc")
	insert(t, s, large, "abcdefgh")

	state, err := s.GetFileState(t.Context(), small.Id, allowAll)
	require.NoError(t, err)
	assert.NotNil(t, state.Content)

	state, err = s.GetFileState(t.Context(), large.Id, allowAll)
	require.NoError(t, err)
	assert.Nil(t, state.Content)

	stream, err := s.OpenReadStream(t.Context(), large.Id, allowAll)
	require.NoError(t, err)
	b, err := io.ReadAll(stream)
	require.NoError(t, err)
	require.NoError(t, stream.Close())
	assert.Equal(t, "abcdefgh", string(b))
}

func TestStorage_WriteStreamExclusive(t *testing.T) {
	s := newTestStorage(t)
	md := newMetadata(data.FileTypeCodelist, "pub-a", false)

	w, err := s.OpenWriteStream(t.Context(), md, false, allowAll)
	require.NoError(t, err)

	_, err = s.OpenWriteStream(t.Context(), md, true, allowAll)
	assert.ErrorIs(t, err, data.ErrInUse)

	r, err := s.OpenReadStream(t.Context(), md.Id, allowAll)
	assert.NoError(t, err)
	assert.Nil(t, r)

	state, err := s.GetFileState(t.Context(), md.Id, allowAll)
	require.NoError(t, err)
	assert.Nil(t, state.Content)
	assert.Equal(t, 1, s.Stats().OpenHandles)

	_, err = io.WriteString(w, "streamed")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	assert.ErrorIs(t, w.Close(), data.ErrClosed)

	state, err = s.GetFileState(t.Context(), md.Id, allowAll)
	require.NoError(t, err)
	assert.Equal(t, "streamed", state.ContentString())
	assert.Zero(t, s.Stats().OpenHandles)
}

func TestStorage_DeleteWhileStreamingIsDeferred(t *testing.T) {
	s := newTestStorage(t)
	md := newMetadata(data.FileTypeCodelist, "pub-a", false)
	insert(t, s, md, "content")
	path := s.contentPath(md)

	r, err := s.OpenReadStream(t.Context(), md.Id, allowAll)
	require.NoError(t, err)
	require.NotNil(t, r)

	require.NoError(t, s.DeleteFile(t.Context(), md.Id, allowAll))
	assert.Nil(t, s.GetFileMetadata(t.Context(), md.Id, allowAll))
	assert.FileExists(t, path)

	b, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "content", string(b))

	require.NoError(t, r.Close())
	assert.NoFileExists(t, path)
}

func TestStorage_ReinsertWhileRemovalPendingIsInUse(t *testing.T) {
	s := newTestStorage(t)
	md := newMetadata(data.FileTypeCodelist, "pub-a", false)
	insert(t, s, md, "old")

	r, err := s.OpenReadStream(t.Context(), md.Id, allowAll)
	require.NoError(t, err)
	require.NotNil(t, r)
	require.NoError(t, s.DeleteFile(t.Context(), md.Id, allowAll))

	err = s.InsertFile(t.Context(), "new", md, false, allowAll)
	assert.ErrorIs(t, err, data.ErrInUse)
	assert.False(t, errors.Is(err, data.ErrExist))

	require.NoError(t, r.Close())
	insert(t, s, md, "new")

	state, err := s.GetFileState(t.Context(), md.Id, allowAll)
	require.NoError(t, err)
	assert.Equal(t, "new", state.ContentString())
}

func TestStorage_WriteStreamClosedAfterDeleteIsNotPublished(t *testing.T) {
	hooks := &recordingHooks{}
	s := newTestStorage(t, WithChangeRecorder(hooks), WithIndexer(hooks))
	md := newMetadata(data.FileTypeCodelist, "pub-a", false)

	w, err := s.OpenWriteStream(t.Context(), md, false, allowAll)
	require.NoError(t, err)
	_, err = io.WriteString(w, "streamed")
	require.NoError(t, err)

	require.NoError(t, s.DeleteFile(t.Context(), md.Id, allowAll))
	require.NoError(t, w.Close())

	assert.Nil(t, s.GetFileMetadata(t.Context(), md.Id, allowAll))
	assert.NoFileExists(t, s.contentPath(md))
	assert.Empty(t, hooks.indexed)
	assert.Equal(t, []uuid.UUID{md.Id}, hooks.removed)
	require.Len(t, hooks.changes, 1)
	assert.Equal(t, data.ChangeDelete, hooks.changes[0].Action)
}

func TestStorage_WriteStreamPublishesCurrentMetadata(t *testing.T) {
	hooks := &recordingHooks{}
	s := newTestStorage(t, WithChangeRecorder(hooks), WithIndexer(hooks))
	md := newMetadata(data.FileTypeCodelist, "pub-a", false)

	w, err := s.OpenWriteStream(t.Context(), md, false, allowAll)
	require.NoError(t, err)

	renamed := md.Clone()
	renamed.Name["en"] = "Renamed while streaming"
	require.NoError(t, s.UpdateMetadata(t.Context(), renamed, allowAll))
	require.NoError(t, w.Close())

	actions := make([]data.ChangeAction, 0)
	for _, change := range hooks.changes {
		actions = append(actions, change.Action)
	}
	assert.Equal(t, []data.ChangeAction{data.ChangeUpdate, data.ChangeStream}, actions)
	assert.Equal(t, []uuid.UUID{md.Id, md.Id}, hooks.indexed)
	assert.Equal(t, "Renamed while streaming", hooks.lastNames[md.Id])
}

func TestStorage_UpdateMetadata(t *testing.T) {
	s := newTestStorage(t)
	md := newMetadata(data.FileTypeDatasetRegistration, "pub-a", false)
	insert(t, s, md, "turtle")
	protected := s.contentPath(md)

	renamed := md.Clone()
	renamed.Name["en"] = "Renamed"
	require.NoError(t, s.UpdateMetadata(t.Context(), renamed, acl.NewPublisher("pub-a")))
	assert.FileExists(t, protected)
	assert.Equal(t, "Renamed", s.GetFileMetadata(t.Context(), md.Id, allowAll).Name["en"])

	published := renamed.Clone()
	published.IsPublic = true
	require.NoError(t, s.UpdateMetadata(t.Context(), published, acl.NewPublisher("pub-a")))

	public := s.contentPath(published)
	assert.NotEqual(t, protected, public)
	assert.NoFileExists(t, protected)
	assert.FileExists(t, public)

	state, err := s.GetFileState(t.Context(), md.Id, acl.PublicOnly{})
	require.NoError(t, err)
	require.NotNil(t, state)
	assert.Equal(t, "turtle", state.ContentString())

	assert.ErrorIs(t, s.UpdateMetadata(t.Context(), newMetadata(data.FileTypeCodelist, "pub-a", false), allowAll), data.ErrNotExist)
	assert.ErrorIs(t, s.UpdateMetadata(t.Context(), published, acl.NewPublisher("pub-b")), data.ErrUnauthorized)
}

func TestStorage_UpdateMetadataRelocationRequiresReadable(t *testing.T) {
	s := newTestStorage(t)
	md := newMetadata(data.FileTypeDatasetRegistration, "pub-a", false)

	w, err := s.OpenWriteStream(t.Context(), md, false, allowAll)
	require.NoError(t, err)

	published := md.Clone()
	published.IsPublic = true
	assert.ErrorIs(t, s.UpdateMetadata(t.Context(), published, allowAll), data.ErrInUse)

	require.NoError(t, w.Close())
	assert.NoError(t, s.UpdateMetadata(t.Context(), published, allowAll))
}

func TestStorage_LoadEntries(t *testing.T) {
	root := t.TempDir()
	s, err := New(root, WithLogger(log.Discard()))
	require.NoError(t, err)

	parent := newMetadata(data.FileTypeDatasetRegistration, "pub-a", true)
	require.NoError(t, s.InsertFile(t.Context(), "parent", parent, false, allowAll))
	child := newMetadata(data.FileTypeDistributionRegistration, "pub-a", false)
	child.ParentFile = &parent.Id
	require.NoError(t, s.InsertFile(t.Context(), "child", child, false, allowAll))

	reopened, err := New(root, WithLogger(log.Discard()), WithLoadWorkers(2))
	require.NoError(t, err)
	require.NoError(t, reopened.LoadEntries(t.Context()))

	assert.Equal(t, 2, reopened.Stats().Entries)
	state, err := reopened.GetFileState(t.Context(), child.Id, allowAll)
	require.NoError(t, err)
	assert.Equal(t, child, state.Metadata)
	assert.Equal(t, "child", state.ContentString())

	// break two files: missing content and malformed sidecar
	require.NoError(t, os.Remove(reopened.contentPath(child)))
	broken := filepath.Join(root, "protected", idHex(uuid.New())+".metadata")
	require.NoError(t, os.WriteFile(broken, []byte("{not json"), 0o644))

	err = reopened.LoadEntries(t.Context())
	require.Error(t, err)
	assert.ErrorIs(t, err, data.ErrLoadFailed)
	assert.Contains(t, err.Error(), child.Id.String())
	assert.Contains(t, err.Error(), broken)

	// the previous index survives a failed reload
	assert.Equal(t, 2, reopened.Stats().Entries)
}

func TestStorage_LoadEntriesDetectsOrphans(t *testing.T) {
	root := t.TempDir()
	s, err := New(root, WithLogger(log.Discard()))
	require.NoError(t, err)

	parent := newMetadata(data.FileTypeDatasetRegistration, "pub-a", false)
	require.NoError(t, s.InsertFile(t.Context(), "parent", parent, false, allowAll))
	child := newMetadata(data.FileTypeDistributionRegistration, "pub-a", false)
	child.ParentFile = &parent.Id
	require.NoError(t, s.InsertFile(t.Context(), "child", child, false, allowAll))

	require.NoError(t, os.Remove(s.metadataPath(parent.Id)))

	err = s.LoadEntries(t.Context())
	assert.ErrorIs(t, err, data.ErrLoadFailed)
	assert.ErrorIs(t, err, data.ErrParentNotExist)
}

func TestStorage_GroupByPublisher(t *testing.T) {
	s := newTestStorage(t)

	registrations := make(map[string]uuid.UUID)
	for _, publisher := range []string{"pub-a", "pub-b", "pub-c"} {
		md := newMetadata(data.FileTypePublisherRegistration, publisher, true)
		md.Name = map[string]string{"en": publisher}
		insert(t, s, md, publisher)
		registrations[publisher] = md.Id
	}

	add := func(publisher string, themes ...string) {
		md := newMetadata(data.FileTypeDatasetRegistration, publisher, true)
		md.AdditionalValues["themes"] = themes
		insert(t, s, md, "dataset")
	}
	add("pub-b", "env")
	add("pub-b", "env", "health")
	add("pub-b", "transport")
	add("pub-a", "health")

	response, err := s.GetFileStatesByPublisher(t.Context(), &data.FileStorageQuery{
		RequiredFacets: []string{"themes"},
	}, allowAll)
	require.NoError(t, err)
	require.Len(t, response.Groups, 3)
	assert.Equal(t, 3, response.TotalCount)

	assert.Equal(t, "pub-b", response.Groups[0].PublisherId)
	assert.Equal(t, 3, response.Groups[0].Count)
	assert.Equal(t, map[string]int{"env": 2, "health": 1, "transport": 1}, response.Groups[0].Facets["themes"])
	assert.Equal(t, registrations["pub-b"], response.Groups[0].PublisherFileState.Metadata.Id)

	assert.Equal(t, "pub-a", response.Groups[1].PublisherId)
	assert.Equal(t, 1, response.Groups[1].Count)
	assert.Equal(t, "pub-c", response.Groups[2].PublisherId)
	assert.Zero(t, response.Groups[2].Count)
	assert.Empty(t, response.Groups[2].Facets["themes"])

	// dataset filters drop publishers without matching datasets
	response, err = s.GetFileStatesByPublisher(t.Context(), &data.FileStorageQuery{
		AdditionalFilters: map[string][]string{"themes": {"health"}},
	}, allowAll)
	require.NoError(t, err)
	require.Len(t, response.Groups, 2)
	assert.Equal(t, 1, response.Groups[0].Count)
	assert.Equal(t, 1, response.Groups[1].Count)

	// paging applies without query text and is skipped with it
	response, err = s.GetFileStatesByPublisher(t.Context(), &data.FileStorageQuery{MaxResults: 1}, allowAll)
	require.NoError(t, err)
	assert.Len(t, response.Groups, 1)
	assert.Equal(t, 3, response.TotalCount)

	response, err = s.GetFileStatesByPublisher(t.Context(), &data.FileStorageQuery{MaxResults: 1, QueryText: "pub"}, allowAll)
	require.NoError(t, err)
	assert.Len(t, response.Groups, 3)
}

type recordingHooks struct {
	mu        sync.Mutex
	changes   []data.Change
	indexed   []uuid.UUID
	removed   []uuid.UUID
	lastNames map[uuid.UUID]string
}

func (r *recordingHooks) Record(_ context.Context, change data.Change) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.changes = append(r.changes, change)
	return nil
}

func (r *recordingHooks) Index(_ context.Context, states ...*data.FileState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastNames == nil {
		r.lastNames = make(map[uuid.UUID]string)
	}
	for _, state := range states {
		r.indexed = append(r.indexed, state.Metadata.Id)
		r.lastNames[state.Metadata.Id] = state.Metadata.Name["en"]
	}
	return nil
}

func (r *recordingHooks) RemoveFromIndex(_ context.Context, ids ...uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, ids...)
	return nil
}

func TestStorage_PublishesChanges(t *testing.T) {
	hooks := &recordingHooks{}
	s := newTestStorage(t, WithChangeRecorder(hooks), WithIndexer(hooks))

	md := newMetadata(data.FileTypeCodelist, "pub-a", false)
	insert(t, s, md, "x")
	require.NoError(t, s.InsertFile(t.Context(), "y", md, true, allowAll))
	require.NoError(t, s.DeleteFile(t.Context(), md.Id, allowAll))

	actions := make([]data.ChangeAction, 0)
	for _, change := range hooks.changes {
		actions = append(actions, change.Action)
		assert.Equal(t, md.Id, change.Id)
		assert.Equal(t, "protected/"+idHex(md.Id), change.Path)
	}
	assert.Equal(t, []data.ChangeAction{data.ChangeInsert, data.ChangeUpdate, data.ChangeDelete}, actions)
	assert.Equal(t, []uuid.UUID{md.Id, md.Id}, hooks.indexed)
	assert.Equal(t, []uuid.UUID{md.Id}, hooks.removed)
}

func TestStorage_ConcurrentReadersAndWriters(t *testing.T) {
	s := newTestStorage(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			md := newMetadata(data.FileTypeDatasetRegistration, "pub-a", true)
			assert.NoError(t, s.InsertFile(t.Context(), "x", md, false, allowAll))
		}()
		go func() {
			defer wg.Done()
			_, err := s.GetFileStates(t.Context(), &data.FileStorageQuery{RequiredFacets: []string{data.FacetPublishers}}, allowAll)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	stats := s.Stats()
	assert.Equal(t, 8, stats.Entries)
	assert.Equal(t, map[data.FileType]int{data.FileTypeDatasetRegistration: 8}, stats.ByType)
}

func TestStorage_Close(t *testing.T) {
	s := newTestStorage(t)
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Close(), data.ErrClosed)
	assert.ErrorIs(t, s.InsertFile(t.Context(), "x", newMetadata(data.FileTypeCodelist, "", false), false, allowAll), data.ErrClosed)
	assert.ErrorIs(t, s.LoadEntries(t.Context()), data.ErrClosed)
}
