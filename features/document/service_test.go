package document

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"docuchat/backend/internal/apperr"
	"docuchat/backend/internal/text"
)

// --- Mocks ---

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Save(ctx context.Context, doc *Document) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockRepository) Get(ctx context.Context, id, ownerID int64) (*Document, error) {
	args := m.Called(ctx, id, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Document), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, ownerID int64) ([]Document, error) {
	args := m.Called(ctx, ownerID)
	return args.Get(0).([]Document), args.Error(1)
}

func (m *MockRepository) Delete(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) Count(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func (m *MockRepository) BeginProcessing(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) MarkIndexed(ctx context.Context, id int64, pageCount, chunkCount int, indexedAt time.Time) error {
	args := m.Called(ctx, id, pageCount, chunkCount, indexedAt)
	return args.Error(0)
}

func (m *MockRepository) MarkFailed(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) ClearIndex(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRepository) InsertPages(ctx context.Context, pages []PageRow) error {
	args := m.Called(ctx, pages)
	return args.Error(0)
}

func (m *MockRepository) InsertChunks(ctx context.Context, chunks []ChunkRow) error {
	args := m.Called(ctx, chunks)
	return args.Error(0)
}

type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(path string) ([]text.Page, error) {
	args := m.Called(path)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]text.Page), args.Error(1)
}

func (m *MockExtractor) Validate(path string) bool {
	args := m.Called(path)
	return args.Bool(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) Publish(topic string, body []byte) error {
	args := m.Called(topic, body)
	return args.Error(0)
}

// --- Tests ---

func TestService_Register(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, nil, nil, 500, 50)

	repo.On("Save", mock.Anything, mock.MatchedBy(func(d *Document) bool {
		return d.Status == StatusUploaded && d.Filename == "report.pdf"
	})).Return(nil)

	doc, err := svc.Register(context.Background(), 1, "report.pdf", "./uploads/x.pdf", 2048)
	require.NoError(t, err)
	assert.Equal(t, StatusUploaded, doc.Status)
	repo.AssertExpectations(t)
}

func TestService_Index_Success(t *testing.T) {
	repo := new(MockRepository)
	extractor := new(MockExtractor)
	pub := new(MockPublisher)

	svc := NewService(repo, extractor, pub, 500, 50)

	doc := &Document{ID: 5, OwnerID: 1, StoragePath: "./uploads/x.pdf", Status: StatusUploaded}
	repo.On("Get", mock.Anything, int64(5), int64(1)).Return(doc, nil)
	repo.On("BeginProcessing", mock.Anything, int64(5)).Return(nil)
	repo.On("ClearIndex", mock.Anything, int64(5)).Return(nil)

	extractor.On("Extract", "./uploads/x.pdf").Return([]text.Page{
		{PageNumber: 1, Text: "First page text.", CharacterCount: 16},
		{PageNumber: 2, Text: "Second page text.", CharacterCount: 17},
	}, nil)

	repo.On("InsertPages", mock.Anything, mock.MatchedBy(func(pages []PageRow) bool {
		return len(pages) == 2 && pages[0].PageNumber == 1 && pages[1].PageNumber == 2
	})).Return(nil)

	// Both pages fit one chunk each at this budget.
	repo.On("InsertChunks", mock.Anything, mock.MatchedBy(func(chunks []ChunkRow) bool {
		return len(chunks) == 2 && chunks[0].PageNumber == 1 && chunks[1].PageNumber == 2 &&
			chunks[0].ChunkIndex == 0 && chunks[1].ChunkIndex == 0
	})).Return(nil)

	repo.On("MarkIndexed", mock.Anything, int64(5), 2, 2, mock.AnythingOfType("time.Time")).Return(nil)
	pub.On("Publish", "document.indexed", mock.Anything).Return(nil)

	result, err := svc.Index(context.Background(), 5, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Pages)
	assert.Equal(t, 2, result.Chunks)
	assert.False(t, result.IndexedAt.IsZero())

	repo.AssertExpectations(t)
	extractor.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestService_Index_AlreadyIndexed(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, nil, nil, 500, 50)

	doc := &Document{ID: 5, OwnerID: 1, Status: StatusIndexed}
	repo.On("Get", mock.Anything, int64(5), int64(1)).Return(doc, nil)

	_, err := svc.Index(context.Background(), 5, 1)
	assert.ErrorIs(t, err, apperr.ErrAlreadyIndexed)

	repo.AssertNotCalled(t, "BeginProcessing", mock.Anything, mock.Anything)
	repo.AssertNotCalled(t, "MarkFailed", mock.Anything, mock.Anything)
}

func TestService_Index_ConcurrentRequestLosesRace(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, nil, nil, 500, 50)

	doc := &Document{ID: 5, OwnerID: 1, Status: StatusUploaded}
	repo.On("Get", mock.Anything, int64(5), int64(1)).Return(doc, nil)
	repo.On("BeginProcessing", mock.Anything, int64(5)).Return(apperr.ErrAlreadyIndexed)

	_, err := svc.Index(context.Background(), 5, 1)
	assert.ErrorIs(t, err, apperr.ErrAlreadyIndexed)
	repo.AssertNotCalled(t, "ClearIndex", mock.Anything, mock.Anything)
}

func TestService_Index_ExtractionFailure(t *testing.T) {
	repo := new(MockRepository)
	extractor := new(MockExtractor)
	pub := new(MockPublisher)

	svc := NewService(repo, extractor, pub, 500, 50)

	doc := &Document{ID: 5, OwnerID: 1, StoragePath: "./uploads/broken.pdf", Status: StatusUploaded}
	repo.On("Get", mock.Anything, int64(5), int64(1)).Return(doc, nil)
	repo.On("BeginProcessing", mock.Anything, int64(5)).Return(nil)
	repo.On("ClearIndex", mock.Anything, int64(5)).Return(nil)

	extractErr := apperr.ErrExtraction
	extractor.On("Extract", "./uploads/broken.pdf").Return(nil, extractErr)

	repo.On("MarkFailed", mock.Anything, int64(5)).Return(nil)
	pub.On("Publish", "document.failed", mock.Anything).Return(nil)

	_, err := svc.Index(context.Background(), 5, 1)
	assert.ErrorIs(t, err, apperr.ErrExtraction)

	repo.AssertCalled(t, "MarkFailed", mock.Anything, int64(5))
	repo.AssertNotCalled(t, "MarkIndexed", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	pub.AssertExpectations(t)
}

func TestService_Index_RetryAfterFailureClearsIndex(t *testing.T) {
	repo := new(MockRepository)
	extractor := new(MockExtractor)

	svc := NewService(repo, extractor, nil, 500, 50)

	doc := &Document{ID: 5, OwnerID: 1, StoragePath: "./uploads/x.pdf", Status: StatusFailed}
	repo.On("Get", mock.Anything, int64(5), int64(1)).Return(doc, nil)
	repo.On("BeginProcessing", mock.Anything, int64(5)).Return(nil)
	repo.On("ClearIndex", mock.Anything, int64(5)).Return(nil)

	extractor.On("Extract", "./uploads/x.pdf").Return([]text.Page{
		{PageNumber: 1, Text: "Recovered text.", CharacterCount: 15},
	}, nil)
	repo.On("InsertPages", mock.Anything, mock.Anything).Return(nil)
	repo.On("InsertChunks", mock.Anything, mock.Anything).Return(nil)
	repo.On("MarkIndexed", mock.Anything, int64(5), 1, 1, mock.AnythingOfType("time.Time")).Return(nil)

	_, err := svc.Index(context.Background(), 5, 1)
	require.NoError(t, err)
	repo.AssertCalled(t, "ClearIndex", mock.Anything, int64(5))
}

func TestService_Index_PublishFailureDoesNotFailIndexing(t *testing.T) {
	repo := new(MockRepository)
	extractor := new(MockExtractor)
	pub := new(MockPublisher)

	svc := NewService(repo, extractor, pub, 500, 50)

	doc := &Document{ID: 5, OwnerID: 1, StoragePath: "./uploads/x.pdf", Status: StatusUploaded}
	repo.On("Get", mock.Anything, int64(5), int64(1)).Return(doc, nil)
	repo.On("BeginProcessing", mock.Anything, int64(5)).Return(nil)
	repo.On("ClearIndex", mock.Anything, int64(5)).Return(nil)
	extractor.On("Extract", "./uploads/x.pdf").Return([]text.Page{
		{PageNumber: 1, Text: "Some text.", CharacterCount: 10},
	}, nil)
	repo.On("InsertPages", mock.Anything, mock.Anything).Return(nil)
	repo.On("InsertChunks", mock.Anything, mock.Anything).Return(nil)
	repo.On("MarkIndexed", mock.Anything, int64(5), 1, 1, mock.AnythingOfType("time.Time")).Return(nil)

	pub.On("Publish", "document.indexed", mock.Anything).Return(errors.New("nsqd unreachable"))

	result, err := svc.Index(context.Background(), 5, 1)
	require.NoError(t, err)
	assert.NotNil(t, result)
}

func TestService_Delete(t *testing.T) {
	repo := new(MockRepository)
	pub := new(MockPublisher)
	svc := NewService(repo, nil, pub, 500, 50)

	doc := &Document{ID: 5, OwnerID: 1, StoragePath: "./uploads/gone-already.pdf"}
	repo.On("Get", mock.Anything, int64(5), int64(1)).Return(doc, nil)
	repo.On("Delete", mock.Anything, int64(5)).Return(nil)
	pub.On("Publish", "document.deleted", mock.Anything).Return(nil)

	// The stored file does not exist; deletion still succeeds.
	err := svc.Delete(context.Background(), 5, 1)
	require.NoError(t, err)
	repo.AssertExpectations(t)
	pub.AssertExpectations(t)
}

func TestService_Delete_NotFound(t *testing.T) {
	repo := new(MockRepository)
	svc := NewService(repo, nil, nil, 500, 50)

	repo.On("Get", mock.Anything, int64(9), int64(1)).Return(nil, apperr.ErrNotFound)

	err := svc.Delete(context.Background(), 9, 1)
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	repo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
}
