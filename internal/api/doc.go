// Package api exposes the metering core over HTTP.
//
// The web application calls the gate before running a metered action and the
// commit endpoint after the action succeeded; everything else is read-only
// dashboard data plus the billing webhook that keeps subscriptions current.
package api
