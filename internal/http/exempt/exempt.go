// Package exempt таблица маршрутов, которые шлюз пропускает без проверки доступа.
//
// Маршруты задаются типизированным перечислением и превращаются в правила
// сопоставления один раз при старте. Всё сопоставление путей живёт в matchPrefix:
// добавление нового маршрута не может расширить исключения незаметно.
package exempt

import (
	"fmt"
	"strings"
)

// Route идентификатор исключённого маршрута.
type Route int

const (
	// RouteAuth регистрация и вход.
	RouteAuth Route = iota + 1
	// RouteBilling HTTP-эндпоинты биллинга, включая webhook.
	RouteBilling
	// RouteHealth проверка живости.
	RouteHealth
	// RouteVersion сведения о сборке.
	RouteVersion
	// RouteMetrics метрики Prometheus.
	RouteMetrics
	// RouteBillingProcedures процедуры billing.*.
	RouteBillingProcedures
	// RouteProfileProcedure процедура profile.get.
	RouteProfileProcedure
)

// AllRoutes полный набор исключений шлюза.
var AllRoutes = []Route{
	RouteAuth,
	RouteBilling,
	RouteHealth,
	RouteVersion,
	RouteMetrics,
	RouteBillingProcedures,
	RouteProfileProcedure,
}

type rule struct {
	route   Route
	pattern string
	exact   bool
}

var rules = map[Route]rule{
	RouteAuth:              {pattern: "/api/v1/auth/"},
	RouteBilling:           {pattern: "/api/v1/billing/"},
	RouteHealth:            {pattern: "/healthz"},
	RouteVersion:           {pattern: "/version"},
	RouteMetrics:           {pattern: "/metrics"},
	RouteBillingProcedures: {pattern: "/rpc/billing."},
	RouteProfileProcedure:  {pattern: "/rpc/profile.get", exact: true},
}

func (r Route) String() string {
	switch r {
	case RouteAuth:
		return "auth"
	case RouteBilling:
		return "billing"
	case RouteHealth:
		return "health"
	case RouteVersion:
		return "version"
	case RouteMetrics:
		return "metrics"
	case RouteBillingProcedures:
		return "billing_procedures"
	case RouteProfileProcedure:
		return "profile_procedure"
	default:
		return fmt.Sprintf("route(%d)", int(r))
	}
}

// Table неизменяемый набор правил, собранный при старте.
type Table struct {
	rules []rule
}

// New собирает таблицу из перечисленных маршрутов. Неизвестный или повторный
// маршрут считается ошибкой конфигурации.
func New(routes ...Route) (*Table, error) {
	const op = "exempt.New"

	seen := make(map[Route]struct{}, len(routes))
	t := &Table{rules: make([]rule, 0, len(routes))}
	for _, r := range routes {
		ru, ok := rules[r]
		if !ok {
			return nil, fmt.Errorf("%s: unknown route %s", op, r)
		}
		if _, dup := seen[r]; dup {
			return nil, fmt.Errorf("%s: duplicate route %s", op, r)
		}
		seen[r] = struct{}{}
		ru.route = r
		t.rules = append(t.rules, ru)
	}
	return t, nil
}

// IsExempt сообщает, исключён ли путь, и каким маршрутом.
func (t *Table) IsExempt(path string) (Route, bool) {
	if t == nil {
		return 0, false
	}
	for _, ru := range t.rules {
		if matchPrefix(path, ru.pattern, ru.exact) {
			return ru.route, true
		}
	}
	return 0, false
}

// matchPrefix буквальное сравнение префикса строки, без учёта сегментов пути:
// "/healthz" совпадает и с "/healthzfoo". exact требует полного совпадения.
func matchPrefix(path, pattern string, exact bool) bool {
	if exact {
		return path == pattern
	}
	return strings.HasPrefix(path, pattern)
}
