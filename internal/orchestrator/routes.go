package orchestrator

import "github.com/ocx/paygate/internal/core"

// builtinRoutes indexes the canonical flow shapes by ingress kind, so the
// orchestrator can select (requestKind, responseKind, clientAckKind) from
// nothing but the kind of the inbound message.
var builtinRoutes = map[core.MessageKind]core.FlowRoute{
	core.KindPain001: core.RouteCustomerCredit,
	core.KindPacs008: core.RouteClearingInbound,
	core.KindPacs004: core.RouteReturn,
	core.KindCamt055: core.RouteCancellationRequest,
	core.KindCamt056: core.RouteStatusInquiry,
	core.KindCamt054: core.RouteNotification,
	core.KindPacs002: core.RouteStatusReport,
	core.KindCamt029: core.RouteInvestigationResolution,
	core.KindPacs028: core.RouteStatusRequestInbound,
}

// routeFor resolves the FlowRoute driving this ingress kind's state
// machine walk. Kinds with no registered route (pain.002, pacs.007,
// camt.053) are response/ack shapes only — they are produced by a route,
// never ingress themselves.
func routeFor(kind core.MessageKind) (core.FlowRoute, bool) {
	route, ok := builtinRoutes[kind]
	return route, ok
}

// dispatchedRoutes marks the routes that are client-originated and
// therefore need an outbound call to a clearing system: pain.001 (credit
// initiation), camt.055 (cancellation request), and camt.056 (status
// inquiry). The other six routes are clearing-originated or
// notification-only and resolve entirely inside this process.
var dispatchedRoutes = map[core.MessageKind]bool{
	core.KindPain001: true,
	core.KindCamt055: true,
	core.KindCamt056: true,
}

// requiresDispatch reports whether ingressKind's route needs an outbound
// clearing-system call, as opposed to purely internal ack synthesis.
func requiresDispatch(ingressKind core.MessageKind) bool {
	return dispatchedRoutes[ingressKind]
}
