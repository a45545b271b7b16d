package rpc

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/stable-manager/internal/http/middlewarectx"
	"github.com/magabrotheeeer/stable-manager/internal/lib/sl"
	"github.com/magabrotheeeer/stable-manager/internal/metrics"
)

const maxInputBytes = 1 << 20

// Result тело успешного ответа.
type Result struct {
	Result ResultData `json:"result"`
}

// ResultData данные успешного ответа.
type ResultData struct {
	Data any `json:"data"`
}

// Router диспетчер процедур под /rpc/{procedure}.
type Router struct {
	procedures map[string]Procedure
	log        *slog.Logger
	metrics    *metrics.Metrics
	limiter    *middlewarectx.Limiter
	validate   *validator.Validate
}

// NewRouter регистрирует процедуры. Повтор имени или пустое имя ошибка.
// limiter может быть nil.
func NewRouter(log *slog.Logger, m *metrics.Metrics, limiter *middlewarectx.Limiter, procedures ...Procedure) (*Router, error) {
	const op = "rpc.NewRouter"

	rt := &Router{
		procedures: make(map[string]Procedure, len(procedures)),
		log:        log,
		metrics:    m,
		limiter:    limiter,
		validate:   validator.New(),
	}
	for _, p := range procedures {
		if p.Name == "" || p.call == nil {
			return nil, fmt.Errorf("%s: procedure without name or handler", op)
		}
		if _, dup := rt.procedures[p.Name]; dup {
			return nil, fmt.Errorf("%s: duplicate procedure %q", op, p.Name)
		}
		rt.procedures[p.Name] = p
	}
	return rt, nil
}

// Routes обработчик для монтирования под /rpc.
func (rt *Router) Routes() http.Handler {
	r := chi.NewRouter()
	r.HandleFunc("/{procedure}", rt.serve)
	return r
}

// serve вызывает процедуру по имени из пути.
// @Summary Вызов процедуры
// @Description Запросы (query) принимают GET с ?input=<json> или POST, мутации только POST.
// @Description Перед процедурой выполняются проверки личности, доступа по подписке и админ-сессии.
// @Tags RPC
// @Accept  json
// @Produce  json
// @Security BearerAuth
// @Param procedure path string true "Имя процедуры, например account.summary"
// @Param input query string false "Вход query-процедуры в JSON (только для GET)"
// @Param request body object false "Вход процедуры в JSON (для POST)"
// @Success 200 {object} Result "Результат процедуры"
// @Failure 400 {object} map[string]interface{} "BAD_REQUEST"
// @Failure 401 {object} map[string]interface{} "UNAUTHORIZED"
// @Failure 402 {object} map[string]interface{} "PAYMENT_REQUIRED"
// @Failure 403 {object} map[string]interface{} "FORBIDDEN"
// @Failure 404 {object} map[string]interface{} "NOT_FOUND"
// @Failure 405 {object} map[string]interface{} "METHOD_NOT_SUPPORTED"
// @Failure 429 {object} map[string]interface{} "TOO_MANY_REQUESTS"
// @Failure 500 {object} map[string]interface{} "INTERNAL_SERVER_ERROR"
// @Router /rpc/{procedure} [get]
// @Router /rpc/{procedure} [post]
func (rt *Router) serve(w http.ResponseWriter, r *http.Request) {
	const op = "rpc.Router"

	name := chi.URLParam(r, "procedure")
	log := rt.log.With(
		sl.Op(op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("procedure", name),
	)
	start := time.Now()

	label := name
	if _, ok := rt.procedures[name]; !ok {
		label = "unknown"
	}

	out, err := rt.dispatch(r, name)
	if err != nil {
		rpcErr, known := AsError(err)
		if !known {
			log.Error("procedure failed", sl.Err(err))
		}
		rt.metrics.ObserveProcedure(label, string(rpcErr.Code), time.Since(start))
		render.Status(r, rpcErr.HTTPStatus())
		render.JSON(w, r, rpcErr.Body())
		return
	}

	rt.metrics.ObserveProcedure(label, "OK", time.Since(start))
	render.JSON(w, r, Result{Result: ResultData{Data: out}})
}

func (rt *Router) dispatch(r *http.Request, name string) (any, error) {
	p, ok := rt.procedures[name]
	if !ok {
		return nil, NewError(CodeNotFound, fmt.Sprintf("no procedure %q", name))
	}

	var raw []byte
	switch {
	case r.Method == http.MethodPost:
		body, err := io.ReadAll(io.LimitReader(r.Body, maxInputBytes))
		if err != nil {
			return nil, NewError(CodeBadRequest, "invalid input")
		}
		raw = body
	case r.Method == http.MethodGet && p.Kind == KindQuery:
		raw = []byte(r.URL.Query().Get("input"))
	default:
		return nil, NewError(CodeMethodNotSupported, fmt.Sprintf("method %s not supported by %q", r.Method, name))
	}

	if rt.limiter != nil && !rt.limiter.Allow(middlewarectx.ClientKey(r)) {
		return nil, NewError(CodeTooManyRequests, "too many requests")
	}

	ctx, err := p.Chain.Run(r.Context())
	if err != nil {
		return nil, err
	}
	return p.call(ctx, rt.validate, raw)
}
