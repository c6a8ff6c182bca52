package videos_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/reelgrab/reelgrab/internal/api/videos"
	"github.com/reelgrab/reelgrab/internal/media"
	"github.com/stretchr/testify/assert"
)

type fakeStore struct {
	records []media.MediaRecord
	deleted []string
}

func (store *fakeStore) Recent() []media.MediaRecord {
	return store.records
}

func (store *fakeStore) Delete(id string) (bool, error) {
	store.deleted = append(store.deleted, id)
	for idx, record := range store.records {
		if record.ID == id {
			store.records = append(store.records[:idx], store.records[idx+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func newServer(store *fakeStore) *echo.Echo {
	ec := echo.New()
	videos.New(store).SetRoutes(ec.Group("/videos"))
	return ec
}

func Test_List_ReturnsRetainedRecords(t *testing.T) {
	t.Parallel()
	store := &fakeStore{records: []media.MediaRecord{
		{ID: "b", Title: "newer", CreatedAt: time.Now().UTC()},
		{ID: "a", Title: "older", CreatedAt: time.Now().UTC().Add(-time.Minute)},
	}}

	request := httptest.NewRequest(http.MethodGet, "/videos/", nil)
	recorder := httptest.NewRecorder()
	newServer(store).ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)

	var payload []media.MediaRecord
	assert.Nil(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	assert.Len(t, payload, 2)
	assert.Equal(t, "b", payload[0].ID)
	assert.Equal(t, "a", payload[1].ID)
}

func Test_Delete_ExistingRecordSucceeds(t *testing.T) {
	t.Parallel()
	store := &fakeStore{records: []media.MediaRecord{{ID: "target"}}}

	request := httptest.NewRequest(http.MethodDelete, "/videos/target/", nil)
	recorder := httptest.NewRecorder()
	newServer(store).ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusOK, recorder.Code)

	var payload videos.StatusResponse
	assert.Nil(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	assert.Equal(t, "success", payload.Status)
	assert.Equal(t, []string{"target"}, store.deleted)
}

func Test_Delete_UnknownRecordReportsNotFound(t *testing.T) {
	t.Parallel()
	store := &fakeStore{}

	request := httptest.NewRequest(http.MethodDelete, "/videos/missing/", nil)
	recorder := httptest.NewRecorder()
	newServer(store).ServeHTTP(recorder, request)

	assert.Equal(t, http.StatusNotFound, recorder.Code)

	var payload videos.StatusResponse
	assert.Nil(t, json.Unmarshal(recorder.Body.Bytes(), &payload))
	assert.Equal(t, "error", payload.Status)
	assert.NotEmpty(t, payload.Message)
}
