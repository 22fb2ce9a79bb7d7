package router

import (
	"github.com/gin-gonic/gin"
	"github.com/marketplace/payouts/internal/interfaces/http/handler"
)

// Handlers are the HTTP handlers the payout service exposes
type Handlers struct {
	Vendor     *handler.VendorHandler
	Commission *handler.CommissionHandler
	Payout     *handler.PayoutHandler
	Event      *handler.EventHandler
	Outbox     *handler.OutboxHandler
	Jobs       *handler.JobsHandler
	Health     *handler.HealthHandler
}

// RouteMiddleware is the per-surface middleware. Nil entries are skipped.
type RouteMiddleware struct {
	// EventIntake guards the inbound order event endpoints (rate limit)
	EventIntake []gin.HandlerFunc
	// ExecutorCallback guards the executor callback (rate limit, signature)
	ExecutorCallback []gin.HandlerFunc
	// Admin guards the operator console
	Admin []gin.HandlerFunc
}

// APIPrefix is where every non-probe route lives
const APIPrefix = "/api/v1"

// Setup mounts the health probes at the root and every surface under
// APIPrefix
func Setup(engine *gin.Engine, h Handlers, mw RouteMiddleware) {
	health := engine.Group("/health")
	health.GET("/live", h.Health.Live)
	health.GET("/ready", h.Health.Ready)

	api := engine.Group(APIPrefix)
	for _, s := range surfaces(h, mw) {
		s.mount(api)
	}
}

func surfaces(h Handlers, mw RouteMiddleware) []surface {
	return []surface{
		{prefix: "/events", guards: mw.EventIntake, routes: []route{
			post("/order-completed", h.Event.OrderCompleted),
			post("/return-or-chargeback", h.Event.ReturnOrChargeback),
		}},
		{prefix: "/vendors", routes: []route{
			get("", h.Vendor.ListVendors),
			get("/:id", h.Vendor.GetVendor),
			get("/:id/policy", h.Vendor.GetPolicy),
			get("/:id/earnings", h.Commission.GetEarnings),
		}},
		{prefix: "/commissions", routes: []route{
			get("", h.Commission.ListEntries),
			get("/:id", h.Commission.GetEntry),
		}},
		{prefix: "/payouts", routes: []route{
			get("", h.Payout.ListPayouts),
			get("/:id", h.Payout.GetPayout),
		}},
		{prefix: "/payouts", guards: mw.ExecutorCallback, routes: []route{
			post("/:id/executor-result", h.Payout.ExecutorResult),
		}},
		{prefix: "/admin", guards: mw.Admin, routes: []route{
			post("/vendors", h.Vendor.Register),
			post("/vendors/:id/approve", h.Vendor.Approve),
			post("/vendors/:id/suspend", h.Vendor.Suspend),
			post("/vendors/:id/reject", h.Vendor.Reject),
			put("/vendors/:id/policy", h.Vendor.UpdatePolicy),
			put("/vendors/:id/bank", h.Vendor.UpdateBankDetails),

			post("/commissions/approve-matured", h.Commission.ApproveMatured),
			post("/commissions/:id/approve", h.Commission.Approve),
			post("/commissions/:id/dispute", h.Commission.Dispute),

			get("/payouts", h.Payout.AdminListPayouts),
			get("/payouts/:id", h.Payout.AdminGetPayout),
			post("/payouts/batch", h.Payout.CreateBatch),
			post("/payouts/reconcile", h.Payout.Reconcile),
			post("/payouts/:id/submit", h.Payout.Submit),
			post("/payouts/:id/retry", h.Payout.Retry),
			post("/payouts/:id/cancel", h.Payout.Cancel),

			get("/outbox/stats", h.Outbox.Stats),
			get("/outbox/dead", h.Outbox.DeadLetters),
			post("/outbox/dead/retry-all", h.Outbox.RequeueAll),
			post("/outbox/dead/:id/retry", h.Outbox.Requeue),
			get("/outbox/:id", h.Outbox.Entry),

			get("/jobs", h.Jobs.History),
			get("/jobs/:id", h.Jobs.Get),
			post("/jobs/:type/run", h.Jobs.Run),
		}},
	}
}
