package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go-savings-api/model"
	"go-savings-api/savings"
	"go-savings-api/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitGSIMHandler(t *testing.T) {
	t.Run("one child per client", func(t *testing.T) {
		// Arrange
		var children []*model.Account
		mockStore := &MockStore{
			CreateGSIMFunc: func(ctx context.Context, g *model.GSIM, c []*model.Account) error {
				g.ID = 3
				g.ChildCount = len(c)
				children = c
				return nil
			},
		}
		body := `{"group_id": 9, "client_ids": [1, 2, 3], "template": {"submitted_on": "2024-01-01", "terms": {"currency": "USD"}}}`
		req := httptest.NewRequest("POST", "/gsim", strings.NewReader(body))
		rr := httptest.NewRecorder()

		// Act
		newRouter(mockStore).ServeHTTP(rr, req)

		// Assert
		assert.Equal(t, http.StatusCreated, rr.Code)
		require.Len(t, children, 3)
		for i, c := range children {
			assert.Equal(t, int64(i+1), c.ClientID)
			assert.Equal(t, int64(9), c.GroupID)
		}
		var g model.GSIM
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&g))
		assert.Equal(t, 3, g.ChildCount)
	})

	t.Run("duplicate client", func(t *testing.T) {
		// Arrange
		body := `{"group_id": 9, "client_ids": [1, 1], "template": {"terms": {"currency": "USD"}}}`
		req := httptest.NewRequest("POST", "/gsim", strings.NewReader(body))
		rr := httptest.NewRecorder()

		// Act
		newRouter(&MockStore{}).ServeHTTP(rr, req)

		// Assert
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "error.msg.gsim.client.invalid")
	})
}

func TestGSIMCommandHandler(t *testing.T) {
	submitted := func(t *testing.T) []*model.Account {
		r := savings.Rules{Today: today}
		var out []*model.Account
		for i := int64(1); i <= 2; i++ {
			acc, err := r.NewAccount(model.SubmitAccountRequest{ClientID: i, GroupID: 9, SubmittedOn: "2024-01-01", Terms: terms()})
			require.NoError(t, err)
			acc.ID = i
			out = append(out, acc)
		}
		return out
	}

	t.Run("approve every child", func(t *testing.T) {
		// Arrange
		children := submitted(t)
		mockStore := &MockStore{
			UpdateGSIMFunc: func(ctx context.Context, id int64, fn func(*model.GSIM, []*model.Account) error) (*model.GSIM, error) {
				g := &model.GSIM{ID: id, GroupID: 9}
				if err := fn(g, children); err != nil {
					return nil, err
				}
				return g, nil
			},
		}
		req := httptest.NewRequest("POST", "/gsim/3?command=approve", strings.NewReader(`{"date": "2024-01-02"}`))
		rr := httptest.NewRecorder()

		// Act
		newRouter(mockStore).ServeHTTP(rr, req)

		// Assert
		assert.Equal(t, http.StatusOK, rr.Code)
		var g model.GSIM
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&g))
		assert.Equal(t, model.StatusApproved, g.Status)
		assert.Equal(t, 2, g.ChildCount)
		for _, c := range children {
			assert.Equal(t, model.StatusApproved, c.Status)
		}
	})

	t.Run("one failing child fails the group", func(t *testing.T) {
		// Arrange
		children := submitted(t)
		children[1].SubmittedOn = model.Date(2024, time.February, 1)
		mockStore := &MockStore{
			UpdateGSIMFunc: func(ctx context.Context, id int64, fn func(*model.GSIM, []*model.Account) error) (*model.GSIM, error) {
				if err := fn(&model.GSIM{ID: id}, children); err != nil {
					return nil, err
				}
				return nil, nil
			},
		}
		req := httptest.NewRequest("POST", "/gsim/3?command=approve", strings.NewReader(`{"date": "2024-01-02"}`))
		rr := httptest.NewRecorder()

		// Act
		newRouter(mockStore).ServeHTTP(rr, req)

		// Assert
		assert.Equal(t, http.StatusBadRequest, rr.Code)
		assert.Contains(t, rr.Body.String(), "before.submittal.date")
	})

	t.Run("not found", func(t *testing.T) {
		// Arrange
		mockStore := &MockStore{
			GetGSIMFunc: func(ctx context.Context, id int64) (*model.GSIM, error) {
				return nil, storage.ErrGSIMNotFound
			},
		}
		req := httptest.NewRequest("GET", "/gsim/3", nil)
		rr := httptest.NewRecorder()

		// Act
		newRouter(mockStore).ServeHTTP(rr, req)

		// Assert
		assert.Equal(t, http.StatusNotFound, rr.Code)
	})

	t.Run("list by group", func(t *testing.T) {
		// Arrange
		mockStore := &MockStore{
			ListGSIMByGroupFunc: func(ctx context.Context, groupID int64) ([]model.GSIM, error) {
				return []model.GSIM{{ID: 3, GroupID: groupID}}, nil
			},
		}
		req := httptest.NewRequest("GET", "/groups/9/gsim", nil)
		rr := httptest.NewRecorder()

		// Act
		newRouter(mockStore).ServeHTTP(rr, req)

		// Assert
		assert.Equal(t, http.StatusOK, rr.Code)
		var list []model.GSIM
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&list))
		require.Len(t, list, 1)
		assert.Equal(t, int64(9), list[0].GroupID)
	})
}
