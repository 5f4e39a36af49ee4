// Package orders is the order lifecycle engine. SubmitAction is the only
// way an order changes: it routes the caller to their dataset, asks the
// policy for a decision, runs the state machine, commits through the
// gateway and then notifies subscribers of the committed result.
package orders

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"food-distribution-api/hub"
	"food-distribution-api/models"
	"food-distribution-api/policy"
	"food-distribution-api/pricing"
	"food-distribution-api/statemachine"
	"food-distribution-api/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const defaultWriteTimeout = 5 * time.Second

// Gateway is the persistence boundary for one dataset. *store.Store
// implements it.
type Gateway interface {
	Dataset() models.Dataset
	CreateOrder(ctx context.Context, o *models.Order, audit *models.AuditEntry) error
	UpdateOrder(ctx context.Context, o *models.Order, expectedVersion int64, audit *models.AuditEntry) error
	GetOrder(ctx context.Context, id string) (*models.Order, error)
	ListOrders(ctx context.Context, f store.OrderFilter) ([]models.Order, error)
	OpenOrders(ctx context.Context, from, to time.Time) ([]models.Order, error)
	AuditTrail(ctx context.Context, orderID string) ([]models.AuditEntry, error)
}

// Directory resolves the users and products an action refers to.
type Directory interface {
	GetUser(ctx context.Context, id string) (*models.User, error)
	GetProduct(ctx context.Context, id string) (*models.Product, error)
}

// Notifier is the live fan-out. *hub.Hub implements it.
type Notifier interface {
	Publish(ev hub.OrderStateChanged) error
	Subscribe(ctx context.Context, userID string, role models.UserRole) (*hub.Connection, error)
}

// Relay forwards committed changes to other services.
type Relay interface {
	Publish(ctx context.Context, ev hub.OrderStateChanged) error
}

type Config struct {
	// WriteTimeout bounds every commit. A commit still running when it
	// fires is reported as CodeUnknown.
	WriteTimeout time.Duration
	// Location cuts calendar days for the daily aggregate.
	Location *time.Location
	// Now defaults to time.Now. Stored times are always UTC.
	Now    func() time.Time
	Relay  Relay
	Logger *slog.Logger
}

type Engine struct {
	gateways   map[models.Dataset]Gateway
	directory  Directory
	notifier   Notifier
	relay      Relay
	aggregator *pricing.Aggregator

	writeTimeout time.Duration
	now          func() time.Time
	log          *slog.Logger
}

// NewEngine wires the engine. production and demo must be distinct
// gateways; the aggregate reads production only.
func NewEngine(production, demo Gateway, directory Directory, notifier Notifier, cfg Config) *Engine {
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaultWriteTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		gateways: map[models.Dataset]Gateway{
			models.DatasetProduction: production,
			models.DatasetDemo:       demo,
		},
		directory:    directory,
		notifier:     notifier,
		relay:        cfg.Relay,
		aggregator:   pricing.NewAggregator(production, cfg.Location),
		writeTimeout: cfg.WriteTimeout,
		now:          cfg.Now,
		log:          cfg.Logger.With("component", "orders"),
	}
}

// Payload carries the action-specific input of SubmitAction.
type Payload struct {
	Lines    []statemachine.LineInput   `json:"lines,omitempty"`
	Prices   map[string]decimal.Decimal `json:"prices,omitempty"`
	DriverID string                     `json:"driver_id,omitempty"`
}

// Result is the committed order as the caller is allowed to see it.
// Changed is false for idempotent no-ops. Published is false when the
// commit succeeded but live notification failed.
type Result struct {
	Order     policy.OrderView `json:"order"`
	Changed   bool             `json:"changed"`
	Published bool             `json:"published"`
}

// SubmitAction performs action on the order identified by orderID (ignored
// for CreateOrder). On any error nothing was written, except CodeUnknown
// where the write may or may not have landed.
func (e *Engine) SubmitAction(ctx context.Context, actor policy.Actor, orderID string, action models.Action, p Payload) (Result, error) {
	if !actor.Role.Valid() {
		return Result{}, newError(CodeUnauthorized, string(policy.ReasonWrongRole), nil)
	}
	if !action.Mutates() {
		return Result{}, newError(CodeInvalidInput, "not_a_mutation", nil)
	}
	gw := e.gateway(actor)

	if action == models.ActionCreateOrder {
		return e.create(ctx, gw, actor, p)
	}

	current, err := gw.GetOrder(ctx, orderID)
	if err != nil {
		return Result{}, fromRead(err)
	}
	if d := policy.Decide(actor, current, action); !d.Allowed {
		return Result{}, denied(d)
	}

	req := statemachine.Request{
		Action:    action,
		ActorID:   actor.ID,
		ActorRole: actor.Role,
		Prices:    p.Prices,
		Now:       e.now().UTC(),
	}
	if action == models.ActionAssignDriver {
		req.Driver, err = e.resolveDriver(ctx, p.DriverID)
		if err != nil {
			return Result{}, err
		}
	}

	res, err := statemachine.Apply(*current, req)
	if err != nil {
		return Result{}, fromGuard(err)
	}
	if !res.Changed {
		return e.result(actor, &res.Order, false, false), nil
	}

	next := res.Order
	next.UpdatedAt = req.Now
	err = e.commit(ctx, func(ctx context.Context) error {
		return gw.UpdateOrder(ctx, &next, current.Version, res.Audit)
	})
	if err != nil {
		e.log.Warn("commit failed", "action", action, "order_id", orderID, "user_id", actor.ID, "error", err)
		return Result{}, err
	}

	published := e.notify(ctx, hub.OrderStateChanged{Order: next, Action: action, From: current.State, At: req.Now})
	e.log.Info("order transitioned", "action", action, "order_id", next.ID, "from", current.State, "to", next.State, "version", next.Version)
	return e.result(actor, &next, true, published), nil
}

func (e *Engine) create(ctx context.Context, gw Gateway, actor policy.Actor, p Payload) (Result, error) {
	if d := policy.Decide(actor, nil, models.ActionCreateOrder); !d.Allowed {
		return Result{}, denied(d)
	}
	if err := e.checkCatalog(ctx, p.Lines); err != nil {
		return Result{}, err
	}

	now := e.now().UTC()
	res, err := statemachine.Place(statemachine.PlaceRequest{
		ID:           uuid.NewString(),
		Dataset:      gw.Dataset(),
		RestaurantID: actor.ID,
		ActorRole:    actor.Role,
		Lines:        p.Lines,
		Now:          now,
	})
	if err != nil {
		return Result{}, fromPlace(err)
	}

	order := res.Order
	err = e.commit(ctx, func(ctx context.Context) error {
		return gw.CreateOrder(ctx, &order, res.Audit)
	})
	if err != nil {
		e.log.Warn("commit failed", "action", models.ActionCreateOrder, "user_id", actor.ID, "error", err)
		return Result{}, err
	}

	published := e.notify(ctx, hub.OrderStateChanged{Order: order, Action: models.ActionCreateOrder, At: now})
	e.log.Info("order placed", "action", models.ActionCreateOrder, "order_id", order.ID, "dataset", order.Dataset, "lines", len(order.Lines))
	return e.result(actor, &order, true, published), nil
}

// checkCatalog requires every line to name an active product. Demo
// orders are checked against the same catalog.
func (e *Engine) checkCatalog(ctx context.Context, lines []statemachine.LineInput) error {
	for _, l := range lines {
		product, err := e.directory.GetProduct(ctx, l.ProductID)
		if errors.Is(err, store.ErrNotFound) {
			return newError(CodeInvalidInput, "unknown_product", errors.New(l.ProductID))
		}
		if err != nil {
			return fromRead(err)
		}
		if !product.Active {
			return newError(CodeInvalidInput, "inactive_product", errors.New(l.ProductID))
		}
	}
	return nil
}

// resolveDriver looks the driver up. An unknown driver is passed on as nil
// so the state machine rejects the assignment with its own reason.
func (e *Engine) resolveDriver(ctx context.Context, driverID string) (*models.User, error) {
	if driverID == "" {
		return nil, newError(CodeInvalidInput, "driver_required", nil)
	}
	u, err := e.directory.GetUser(ctx, driverID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fromRead(err)
	}
	return u, nil
}

// commit runs write detached from the caller's cancellation and bounded by
// the write timeout. If the timeout fires first the outcome is unknown:
// the write keeps running and may still commit.
func (e *Engine) commit(ctx context.Context, write func(context.Context) error) error {
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), e.writeTimeout)
	done := make(chan error, 1)
	go func() {
		defer cancel()
		done <- write(wctx)
	}()

	var err error
	select {
	case err = <-done:
	case <-wctx.Done():
		// cancel also runs once the write returns, so a finished write
		// may race the deadline here.
		select {
		case err = <-done:
		default:
			return newError(CodeUnknown, "timeout", wctx.Err())
		}
	}
	if err != nil {
		return fromStore(err)
	}
	return nil
}

// notify publishes a committed change. Failures are logged and reported
// through the result, never as an error: the commit already happened.
func (e *Engine) notify(ctx context.Context, ev hub.OrderStateChanged) bool {
	published := true
	if err := e.notifier.Publish(ev); err != nil {
		published = false
		e.log.Error("publish failed", "action", ev.Action, "order_id", ev.Order.ID, "version", ev.Order.Version, "error", err)
	}
	if e.relay != nil {
		go func(ctx context.Context) {
			if err := e.relay.Publish(ctx, ev); err != nil {
				e.log.Error("relay failed", "action", ev.Action, "order_id", ev.Order.ID, "version", ev.Order.Version, "error", err)
			}
		}(context.WithoutCancel(ctx))
	}
	return published
}

func (e *Engine) result(actor policy.Actor, o *models.Order, changed, published bool) Result {
	view, _ := policy.Project(actor, o)
	return Result{Order: view, Changed: changed, Published: published}
}

func (e *Engine) gateway(actor policy.Actor) Gateway {
	return e.gateways[models.DatasetFor(actor.Role)]
}

// denied maps a policy denial onto the error taxonomy: "never" reasons
// are Unauthorized, "not now" reasons are InvalidTransition.
func denied(d policy.Decision) error {
	if d.Reason.Permanent() {
		return newError(CodeUnauthorized, string(d.Reason), nil)
	}
	return newError(CodeInvalidTransition, string(d.Reason), nil)
}
