// Package scope decides whether a target is inside the set of hosts a scan
// is authorized to contact.
//
// Every outbound request made by the web package is checked against a Gate
// before anything touches the network. The Gate interface is deliberately
// tiny (a single boolean decision) so that the surrounding scanner can plug
// in its own matching rules; Target is the simple implementation used by the
// CLI, matching exact hosts, domains with their subdomains, IPs and CIDRs.
//
// Checks are pure: no DNS resolution, no I/O.
package scope
