// Package clientip resolves the originating client address behind reverse proxies.
//
// The metering API uses it to burst-limit unauthenticated routes such as the
// billing webhook, where no user ID is available to key on. Forwarding headers
// are client controlled unless the edge proxy overwrites them, so list only the
// ones your proxy sets.
package clientip
