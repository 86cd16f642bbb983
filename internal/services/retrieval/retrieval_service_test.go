package retrieval

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/facet/internal/common"
	"github.com/ternarybob/facet/internal/models"
)

type fakeEmbedder struct {
	vector []float32
	err    error
}

func (f *fakeEmbedder) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	return f.vector, f.err
}

func (f *fakeEmbedder) GenerateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vector
	}
	return out, f.err
}

func (f *fakeEmbedder) GenerateQueryEmbedding(ctx context.Context, query string) ([]float32, error) {
	return f.vector, f.err
}

func (f *fakeEmbedder) ModelName() string { return "fake-embed" }
func (f *fakeEmbedder) Dimension() int    { return len(f.vector) }

type fakeSectionStorage struct {
	matches      []*models.SectionMatch
	gotLimit     int
	gotDomains   []string
	nearestError error
}

func (f *fakeSectionStorage) SaveSections(ctx context.Context, sections []*models.Section) error {
	return nil
}

func (f *fakeSectionStorage) DeleteSectionsByPage(ctx context.Context, pageID string) error {
	return nil
}

func (f *fakeSectionStorage) GetSectionsByPage(ctx context.Context, pageID string) ([]*models.Section, error) {
	return nil, nil
}

func (f *fakeSectionStorage) NearestSections(ctx context.Context, query []float32, limit int, domains []string) ([]*models.SectionMatch, error) {
	f.gotLimit = limit
	f.gotDomains = domains
	if f.nearestError != nil {
		return nil, f.nearestError
	}
	if limit < len(f.matches) {
		return f.matches[:limit], nil
	}
	return f.matches, nil
}

func (f *fakeSectionStorage) CountSections(ctx context.Context) (int, error) { return 0, nil }

type fakeReferenceStorage struct {
	matches  []*models.ReferenceMatch
	gotLimit int
}

func (f *fakeReferenceStorage) UpsertDoc(ctx context.Context, doc *models.ReferenceDoc) error {
	return nil
}

func (f *fakeReferenceStorage) GetDoc(ctx context.Context, path string) (*models.ReferenceDoc, error) {
	return nil, nil
}

func (f *fakeReferenceStorage) SaveChunks(ctx context.Context, chunks []*models.ReferenceChunk) error {
	return nil
}

func (f *fakeReferenceStorage) DeleteChunksByDoc(ctx context.Context, docPath string) error {
	return nil
}

func (f *fakeReferenceStorage) NearestChunks(ctx context.Context, query []float32, limit int) ([]*models.ReferenceMatch, error) {
	f.gotLimit = limit
	if limit < len(f.matches) {
		return f.matches[:limit], nil
	}
	return f.matches, nil
}

func newTestService(cfg *common.RetrievalConfig, sections *fakeSectionStorage, refs *fakeReferenceStorage) *Service {
	return NewService(cfg, &fakeEmbedder{vector: []float32{1, 0, 0}}, sections, refs, arbor.NewLogger())
}

func sectionMatch(domain, content string, distance float64) *models.SectionMatch {
	return &models.SectionMatch{
		Section:  &models.Section{SiteDomain: domain, Content: content},
		Distance: distance,
	}
}

func TestScoreFromDistance_Monotonic(t *testing.T) {
	assert.Equal(t, 1.0, scoreFromDistance(0))
	assert.Greater(t, scoreFromDistance(0.1), scoreFromDistance(0.5))
	assert.Greater(t, scoreFromDistance(0.5), scoreFromDistance(2.0))
	assert.Greater(t, scoreFromDistance(100), 0.0)
}

func TestRetrieve_EmptyQuery(t *testing.T) {
	svc := newTestService(&common.RetrievalConfig{TopK: 5}, &fakeSectionStorage{}, &fakeReferenceStorage{})

	_, err := svc.Retrieve(context.Background(), "  ", CorpusWeb)
	assert.Error(t, err)
}

func TestRetrieveByVector_TopKClamp(t *testing.T) {
	sections := &fakeSectionStorage{}

	svc := newTestService(&common.RetrievalConfig{TopK: 50}, sections, &fakeReferenceStorage{})
	_, err := svc.RetrieveByVector(context.Background(), []float32{1, 0, 0}, CorpusWeb)
	require.NoError(t, err)
	assert.Equal(t, 10, sections.gotLimit)

	svc = newTestService(&common.RetrievalConfig{TopK: 0}, sections, &fakeReferenceStorage{})
	_, err = svc.RetrieveByVector(context.Background(), []float32{1, 0, 0}, CorpusWeb)
	require.NoError(t, err)
	assert.Equal(t, 10, sections.gotLimit)

	svc = newTestService(&common.RetrievalConfig{TopK: 3}, sections, &fakeReferenceStorage{})
	_, err = svc.RetrieveByVector(context.Background(), []float32{1, 0, 0}, CorpusWeb)
	require.NoError(t, err)
	assert.Equal(t, 3, sections.gotLimit)
}

func TestRetrieveByVector_MinScoreFilter(t *testing.T) {
	sections := &fakeSectionStorage{matches: []*models.SectionMatch{
		sectionMatch("a.com", "close match", 0.1),  // score ~0.91
		sectionMatch("b.com", "medium match", 1.0), // score 0.5
		sectionMatch("c.com", "far match", 4.0),    // score 0.2
	}}
	svc := newTestService(&common.RetrievalConfig{TopK: 5, MinScore: 0.4}, sections, &fakeReferenceStorage{})

	results, err := svc.RetrieveByVector(context.Background(), []float32{1, 0, 0}, CorpusWeb)
	require.NoError(t, err)

	require.Len(t, results, 2)
	assert.Equal(t, "close match", results[0].Content)
	assert.Equal(t, "a.com", results[0].Source)
	assert.Equal(t, "medium match", results[1].Content)
}

func TestRetrieveByVector_WebDomainsPassedThrough(t *testing.T) {
	sections := &fakeSectionStorage{}
	cfg := &common.RetrievalConfig{TopK: 5, WebDomains: []string{"a.com", "b.com"}}
	svc := newTestService(cfg, sections, &fakeReferenceStorage{})

	_, err := svc.RetrieveByVector(context.Background(), []float32{1, 0, 0}, CorpusWeb)
	require.NoError(t, err)
	assert.Equal(t, []string{"a.com", "b.com"}, sections.gotDomains)
}

func TestRetrieveByVector_ReferenceCorpus(t *testing.T) {
	refs := &fakeReferenceStorage{matches: []*models.ReferenceMatch{
		{Chunk: &models.ReferenceChunk{DocPath: "pricing.md", Title: "Pricing", Content: "price guidance"}, Distance: 0.2},
	}}
	svc := newTestService(&common.RetrievalConfig{TopK: 5}, &fakeSectionStorage{}, refs)

	results, err := svc.RetrieveByVector(context.Background(), []float32{1, 0, 0}, CorpusReference)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "pricing.md", results[0].Source)
	assert.Equal(t, "Pricing", results[0].Title)
}

func TestRetrieveByVector_CarriesSectionTitle(t *testing.T) {
	sections := &fakeSectionStorage{matches: []*models.SectionMatch{
		{Section: &models.Section{SiteDomain: "a.com", Title: "Materials", Content: "quartz"}, Distance: 0.1},
	}}
	svc := newTestService(&common.RetrievalConfig{TopK: 5}, sections, &fakeReferenceStorage{})

	results, err := svc.RetrieveByVector(context.Background(), []float32{1, 0, 0}, CorpusWeb)
	require.NoError(t, err)

	require.Len(t, results, 1)
	assert.Equal(t, "Materials", results[0].Title)
}

func TestRetrieveByVector_UnknownCorpus(t *testing.T) {
	svc := newTestService(&common.RetrievalConfig{TopK: 5}, &fakeSectionStorage{}, &fakeReferenceStorage{})

	_, err := svc.RetrieveByVector(context.Background(), []float32{1, 0, 0}, Corpus("bogus"))
	assert.Error(t, err)
}

func TestRetrieveByVector_StorageErrorWrapped(t *testing.T) {
	sections := &fakeSectionStorage{nearestError: fmt.Errorf("scan failed")}
	svc := newTestService(&common.RetrievalConfig{TopK: 5}, sections, &fakeReferenceStorage{})

	_, err := svc.RetrieveByVector(context.Background(), []float32{1, 0, 0}, CorpusWeb)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "web retrieval failed")
}

func TestFormatContext(t *testing.T) {
	assert.Empty(t, FormatContext("Knowledge", nil))

	block := FormatContext("Web knowledge", []*Result{
		{Content: "Quartz is durable.", Source: "a.com", Title: "Materials", Score: 0.9},
		{Content: "Granite needs sealing.", Source: "b.com", Score: 0.8},
	})

	assert.Contains(t, block, "### Web knowledge")
	assert.Contains(t, block, "[source: a.com | Materials | score: 0.90]\nQuartz is durable.")
	assert.Contains(t, block, "[source: b.com | score: 0.80]\nGranite needs sealing.",
		"the title segment is omitted when no title is known")
}
