package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ocx/paygate/internal/core"
)

func TestRouteFor_InternalProcessingKindsResolveWithNoDispatch(t *testing.T) {
	cases := []struct {
		kind  core.MessageKind
		route core.FlowRoute
	}{
		{core.KindPacs002, core.RouteStatusReport},
		{core.KindCamt029, core.RouteInvestigationResolution},
		{core.KindPacs028, core.RouteStatusRequestInbound},
	}

	for _, tc := range cases {
		route, ok := routeFor(tc.kind)
		require.True(t, ok, "%s must resolve to a route", tc.kind)
		assert.Equal(t, tc.route, route)
		assert.Empty(t, route.ResponseKind, "%s is internal processing, not a clearing round trip", tc.kind)
		assert.False(t, requiresDispatch(tc.kind), "%s must not dispatch to a clearing system", tc.kind)
	}
}

func TestRouteFor_UnregisteredAckOnlyKindsAreNotIngressRoutes(t *testing.T) {
	for _, kind := range []core.MessageKind{core.KindPain002, core.KindPacs007, core.KindCamt053} {
		_, ok := routeFor(kind)
		assert.False(t, ok, "%s is a response/ack shape, never an ingress kind", kind)
	}
}
