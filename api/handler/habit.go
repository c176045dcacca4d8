package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"github.com/fastygo/habits/api/transport"
	"github.com/fastygo/habits/domain"
	"github.com/fastygo/habits/pkg/httpcontext"
	"github.com/fastygo/habits/usecase"
	habitUC "github.com/fastygo/habits/usecase/habit"
)

type HabitHandler struct {
	baseHandler
	stores *habitUC.Registry
	clock  usecase.Clock
}

func NewHabitHandler(stores *habitUC.Registry, clock usecase.Clock, adapter *httpcontext.Adapter, logger *zap.Logger) *HabitHandler {
	if clock == nil {
		clock = usecase.SystemClock{}
	}
	return &HabitHandler{
		baseHandler: newBaseHandler(adapter, logger),
		stores:      stores,
		clock:       clock,
	}
}

// @Summary List the signed-in user's habits
// @Tags habits
// @Router /api/v1/habits [get]
func (h *HabitHandler) List(ctx *fasthttp.RequestCtx) {
	sessionID := h.sessionID(ctx)
	if sessionID == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	store, err := h.stores.For(stdCtx, sessionID)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}

	habits := store.Habits()
	if string(ctx.QueryArgs().Peek("refresh")) == "true" {
		if habits, err = store.LoadHabits(stdCtx, store.Owner()); err != nil {
			h.respondError(stdCtx, ctx, err)
			return
		}
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(
		transport.NewHabitViews(habits, h.clock.Now()),
		transport.ListMeta{Count: len(habits)},
	))
}

// @Summary Create a habit
// @Tags habits
// @Router /api/v1/habits [post]
func (h *HabitHandler) Create(ctx *fasthttp.RequestCtx) {
	sessionID := h.sessionID(ctx)
	if sessionID == "" {
		return
	}

	var req transport.HabitRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "invalid payload", nil))
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	store, err := h.stores.For(stdCtx, sessionID)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	created, err := store.AddHabit(stdCtx, req.Title, req.Description, req.Frequency)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondSuccess(ctx, http.StatusCreated, created)
}

// @Summary Complete a habit
// @Tags habits
// @Router /api/v1/habits/{id}/complete [post]
func (h *HabitHandler) Complete(ctx *fasthttp.RequestCtx) {
	h.mutate(ctx, func(store *habitUC.Store, stdCtx context.Context, id string) error {
		return store.CompleteHabit(stdCtx, id)
	})
}

// @Summary Delete a habit
// @Tags habits
// @Router /api/v1/habits/{id} [delete]
func (h *HabitHandler) Delete(ctx *fasthttp.RequestCtx) {
	h.mutate(ctx, func(store *habitUC.Store, stdCtx context.Context, id string) error {
		return store.DeleteHabit(stdCtx, id)
	})
}

// @Summary Completion history of a habit
// @Tags habits
// @Router /api/v1/habits/{id}/completions [get]
func (h *HabitHandler) Completions(ctx *fasthttp.RequestCtx) {
	sessionID := h.sessionID(ctx)
	if sessionID == "" {
		return
	}
	id := h.habitID(ctx)
	if id == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	store, err := h.stores.For(stdCtx, sessionID)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	completions, err := store.Completions(stdCtx, id)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	h.respondJSON(ctx, http.StatusOK, transport.NewSuccess(completions, transport.ListMeta{Count: len(completions)}))
}

func (h *HabitHandler) mutate(ctx *fasthttp.RequestCtx, op func(store *habitUC.Store, stdCtx context.Context, id string) error) {
	sessionID := h.sessionID(ctx)
	if sessionID == "" {
		return
	}
	id := h.habitID(ctx)
	if id == "" {
		return
	}

	stdCtx, cancel := h.requestContext(ctx)
	defer cancel()

	store, err := h.stores.For(stdCtx, sessionID)
	if err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	if err := op(store, stdCtx, id); err != nil {
		h.respondError(stdCtx, ctx, err)
		return
	}
	ctx.SetStatusCode(http.StatusAccepted)
}

func (h *HabitHandler) habitID(ctx *fasthttp.RequestCtx) string {
	id, _ := ctx.UserValue("id").(string)
	if id == "" {
		h.respondJSON(ctx, http.StatusBadRequest, transport.NewError(string(domain.ErrCodeInvalid), "missing habit id", nil))
	}
	return id
}
