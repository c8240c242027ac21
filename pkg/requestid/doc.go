// Package requestid assigns every HTTP request an ID, exposes it through the
// request context and the X-Request-ID response header, and feeds it to the
// logger so all records of one request can be correlated.
package requestid
