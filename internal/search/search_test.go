package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ayush/helsa/backend/internal/apperr"
	"github.com/ayush/helsa/backend/internal/auth"
	"github.com/ayush/helsa/backend/internal/intake"
	"github.com/ayush/helsa/backend/internal/models"
	"github.com/ayush/helsa/backend/internal/store"
)

type fakeSearches struct {
	mu        sync.Mutex
	inserted  []*models.Search
	insertErr error
}

func (f *fakeSearches) InsertSearch(_ context.Context, s *models.Search) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, s)
	return nil
}

func (f *fakeSearches) ListSearches(_ context.Context, userID uuid.UUID) ([]models.Search, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []models.Search{}
	for i := len(f.inserted) - 1; i >= 0; i-- {
		if f.inserted[i].UserID == userID {
			out = append(out, *f.inserted[i])
		}
	}
	return out, nil
}

func (f *fakeSearches) GetSearch(_ context.Context, id, userID uuid.UUID) (*models.Search, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.inserted {
		if s.ID == id && s.UserID == userID {
			return s, nil
		}
	}
	return nil, store.ErrNotFound
}

type fakeImages struct {
	mu      sync.Mutex
	objects map[string][]byte
	failOn  string
	removed []string
}

func newFakeImages() *fakeImages {
	return &fakeImages{objects: map[string][]byte{}}
}

func (f *fakeImages) Upload(_ context.Context, key string, data []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if key == f.failOn {
		return errors.New("bucket unavailable")
	}
	f.objects[key] = data
	return nil
}

func (f *fakeImages) Download(_ context.Context, key string) ([]byte, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	data, ok := f.objects[key]
	if !ok {
		return nil, "", store.ErrNotFound
	}
	return data, "image/jpeg", nil
}

func (f *fakeImages) Remove(_ context.Context, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.objects, key)
	f.removed = append(f.removed, key)
	return nil
}

func sampleImages(n int) []intake.NormalizedImage {
	out := make([]intake.NormalizedImage, n)
	for i := range out {
		out[i] = intake.NormalizedImage{
			Name:   uuid.NewString() + ".jpg",
			Data:   []byte{0xFF, 0xD8, byte(i)},
			Width:  100 + i,
			Height: 50,
		}
	}
	return out
}

func sampleResponse() *models.DoctorsResponse {
	return &models.DoctorsResponse{Diagnoses: []models.Diagnose{
		{Name: "Common cold", Description: "Viral infection", RecommendedAction: "Rest"},
		{Name: "Allergy", Description: "Seasonal allergy", RecommendedAction: "Antihistamines"},
	}}
}

func TestCreate(t *testing.T) {
	age := 30
	user := &models.User{ID: uuid.New()}
	report := models.PatientReport{
		ResponseTone:  models.ToneFriendly,
		LanguageStyle: models.StyleSimple,
		SexAtBirth:    models.SexMale,
		Symptoms:      "sneezing all day",
		AgeYears:      &age,
	}
	images := sampleImages(2)

	s := Create(report, user, sampleResponse(), images)

	assert.NotEqual(t, uuid.Nil, s.ID)
	assert.Equal(t, user.ID, s.UserID)
	assert.Equal(t, "sneezing all day", s.Symptoms)
	assert.Nil(t, s.Duration)
	require.NotNil(t, s.SexAtBirth)
	assert.Equal(t, models.SexMale, *s.SexAtBirth)
	assert.Equal(t, 30, *s.PatientAgeYears)

	require.Len(t, s.Diagnoses, 2)
	assert.Equal(t, "Common cold", s.Diagnoses[0].Name)
	assert.Equal(t, 0, s.Diagnoses[0].Position)
	assert.Equal(t, 1, s.Diagnoses[1].Position)
	assert.Equal(t, s.ID, s.Diagnoses[1].SearchID)

	require.Len(t, s.Images, 2)
	assert.Equal(t, images[1].Name, s.Images[1].ImageSrc)
	assert.Equal(t, 101, s.Images[1].Width)
	assert.Equal(t, s.ID, s.Images[0].SearchID)
}

func TestCreate_NoImagesGivesEmptySlice(t *testing.T) {
	s := Create(models.PatientReport{Symptoms: "cough"}, &models.User{ID: uuid.New()}, sampleResponse(), nil)
	assert.NotNil(t, s.Images)
	assert.Empty(t, s.Images)
	assert.Nil(t, s.SexAtBirth)
}

func TestPersist(t *testing.T) {
	searches := &fakeSearches{}
	images := newFakeImages()
	rec := NewRecorder(searches, images, zerolog.Nop())

	imgs := sampleImages(2)
	s := Create(models.PatientReport{Symptoms: "rash on arm"}, &models.User{ID: uuid.New()}, sampleResponse(), imgs)
	require.NoError(t, rec.Persist(context.Background(), s, imgs))

	require.Len(t, searches.inserted, 1)
	assert.Len(t, images.objects, 2)
	assert.Equal(t, imgs[0].Data, images.objects[imgs[0].Name])
}

func TestPersist_InsertFailureRemovesObjects(t *testing.T) {
	searches := &fakeSearches{insertErr: errors.New("tx aborted")}
	images := newFakeImages()
	rec := NewRecorder(searches, images, zerolog.Nop())

	imgs := sampleImages(3)
	s := Create(models.PatientReport{Symptoms: "rash on arm"}, &models.User{ID: uuid.New()}, sampleResponse(), imgs)
	err := rec.Persist(context.Background(), s, imgs)

	assert.Equal(t, apperr.Unexpected, apperr.KindOf(err))
	assert.Empty(t, images.objects)
	assert.Len(t, images.removed, 3)
}

func TestPersist_UploadFailure(t *testing.T) {
	searches := &fakeSearches{}
	images := newFakeImages()
	rec := NewRecorder(searches, images, zerolog.Nop())

	imgs := sampleImages(3)
	images.failOn = imgs[1].Name
	s := Create(models.PatientReport{Symptoms: "rash on arm"}, &models.User{ID: uuid.New()}, sampleResponse(), imgs)
	err := rec.Persist(context.Background(), s, imgs)

	assert.Equal(t, apperr.StorageIOFailure, apperr.KindOf(err))
	assert.Empty(t, searches.inserted)
	assert.Empty(t, images.objects)
	assert.Equal(t, []string{imgs[0].Name}, images.removed)
}

func TestPersist_RefusesEmptyDiagnoses(t *testing.T) {
	searches := &fakeSearches{}
	rec := NewRecorder(searches, newFakeImages(), zerolog.Nop())

	s := Create(models.PatientReport{Symptoms: "cough"}, &models.User{ID: uuid.New()}, &models.DoctorsResponse{}, nil)
	err := rec.Persist(context.Background(), s, nil)
	assert.Equal(t, apperr.RequestFailed, apperr.KindOf(err))
	assert.Empty(t, searches.inserted)
}

func newTestRouter(t *testing.T, user *models.User) (http.Handler, *Recorder, *fakeImages) {
	t.Helper()
	images := newFakeImages()
	rec := NewRecorder(&fakeSearches{}, images, zerolog.Nop())
	h := NewHandler(rec, zerolog.Nop())

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(auth.WithUser(req.Context(), user)))
		})
	})
	r.Get("/searches", h.List)
	r.Get("/searches/{id}", h.Get)
	r.Get("/searches/{id}/images/{imageID}", h.Image)
	return r, rec, images
}

func TestHandler_ListGetAndImage(t *testing.T) {
	owner := &models.User{ID: uuid.New()}
	router, rec, _ := newTestRouter(t, owner)

	imgs := sampleImages(1)
	s := Create(models.PatientReport{Symptoms: "itchy eyes"}, owner, sampleResponse(), imgs)
	require.NoError(t, rec.Persist(context.Background(), s, imgs))

	do := func(path string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		return w
	}

	w := do("/searches")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), s.ID.String())

	w = do("/searches/" + s.ID.String())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"recommended_action":"Rest"`)

	w = do("/searches/" + s.ID.String() + "/images/" + s.Images[0].ID.String())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/jpeg", w.Header().Get("Content-Type"))
	assert.Equal(t, imgs[0].Data, w.Body.Bytes())

	assert.Equal(t, http.StatusNotFound, do("/searches/"+uuid.NewString()).Code)
	assert.Equal(t, http.StatusNotFound, do("/searches/not-a-uuid").Code)
	assert.Equal(t, http.StatusNotFound, do("/searches/"+s.ID.String()+"/images/"+uuid.NewString()).Code)
}

func TestHandler_ForeignSearchIsNotFound(t *testing.T) {
	owner := &models.User{ID: uuid.New()}
	stranger := &models.User{ID: uuid.New()}
	router, rec, _ := newTestRouter(t, stranger)

	s := Create(models.PatientReport{Symptoms: "itchy eyes"}, owner, sampleResponse(), nil)
	require.NoError(t, rec.Persist(context.Background(), s, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/searches/"+s.ID.String(), nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"error":"Search was not found"}`, w.Body.String())
}

func TestRecorderImage_MissingObject(t *testing.T) {
	owner := &models.User{ID: uuid.New()}
	images := newFakeImages()
	rec := NewRecorder(&fakeSearches{}, images, zerolog.Nop())

	imgs := sampleImages(1)
	s := Create(models.PatientReport{Symptoms: "rash"}, owner, sampleResponse(), imgs)
	require.NoError(t, rec.Persist(context.Background(), s, imgs))
	require.NoError(t, images.Remove(context.Background(), imgs[0].Name))

	_, _, err := rec.Image(context.Background(), s.ID, s.Images[0].ID, owner.ID)
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.NotFound))
	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, MsgImageNotFound, appErr.Message)
}
