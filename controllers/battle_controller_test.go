package controllers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llmwars/controllers"
	"llmwars/db"
	"llmwars/models"
	"llmwars/routes"
	"llmwars/services"
)

type cannedGenerator struct{}

func (cannedGenerator) GenerateResponse(_ context.Context, provider models.Provider, _ string, _ []services.ChatTurn) (string, error) {
	return fmt.Sprintf("%s speaks", provider), nil
}

func newTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)

	battles := services.NewBattleService(cannedGenerator{}, db.Noop())
	controller := controllers.NewBattleController(battles, nil)

	router := gin.New()
	routes.SetupBattleRoutes(router, controller)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, payload any) *httptest.ResponseRecorder {
	t.Helper()
	var body *bytes.Buffer
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewBuffer(data)
	} else {
		body = bytes.NewBuffer(nil)
	}

	req := httptest.NewRequest(method, path, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func battlePayload(participants int) map[string]any {
	providers := []models.Provider{models.ProviderOpenAI, models.ProviderClaude, models.ProviderGrok}
	llms := make([]map[string]any, 0, participants)
	for i := 0; i < participants; i++ {
		llms = append(llms, map[string]any{
			"provider": providers[i%len(providers)],
			"persona":  "An opinionated debater",
		})
	}
	return map[string]any{"topic": "Cats vs Dogs", "rounds": 1, "llms": llms}
}

func TestCreateBattleEndpoint(t *testing.T) {
	router := newTestRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/battle/", battlePayload(3))
	require.Equal(t, 200, rec.Code, rec.Body.String())

	var resp models.BattleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.ID)
	assert.Equal(t, models.StatusPending, resp.Status)
	assert.Equal(t, 1, resp.TotalRounds)
}

func TestCreateBattleEndpointRejectsWrongParticipantCount(t *testing.T) {
	router := newTestRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/battle/", battlePayload(2))
	assert.Equal(t, 400, rec.Code)
}

func TestGetBattleEndpointNotFound(t *testing.T) {
	router := newTestRouter()

	rec := doJSON(t, router, http.MethodGet, "/api/battle/does-not-exist", nil)
	assert.Equal(t, 404, rec.Code)
}

func TestRunBattleEndpoint(t *testing.T) {
	router := newTestRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/battle/", battlePayload(3))
	require.Equal(t, 200, rec.Code)
	var created models.BattleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, router, http.MethodPost, "/api/battle/"+created.ID+"/run", nil)
	require.Equal(t, 200, rec.Code, rec.Body.String())

	var finished models.BattleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &finished))
	assert.Equal(t, models.StatusCompleted, finished.Status)
	assert.Len(t, finished.Messages, 3)
}

func TestVoteEndpoints(t *testing.T) {
	router := newTestRouter()

	rec := doJSON(t, router, http.MethodPost, "/api/battle/", battlePayload(3))
	require.Equal(t, 200, rec.Code)
	var created models.BattleResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))

	rec = doJSON(t, router, http.MethodPost, "/api/battle/"+created.ID+"/vote",
		map[string]any{"provider": "claude"})
	assert.Equal(t, 200, rec.Code, rec.Body.String())

	rec = doJSON(t, router, http.MethodPost, "/api/battle/"+created.ID+"/vote",
		map[string]any{"provider": "skynet"})
	assert.Equal(t, 400, rec.Code)

	rec = doJSON(t, router, http.MethodGet, "/api/battle/"+created.ID+"/votes", nil)
	require.Equal(t, 200, rec.Code)

	var tally struct {
		Votes map[models.Provider]int `json:"votes"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &tally))
	assert.Len(t, tally.Votes, len(models.Providers))
}
