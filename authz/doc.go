// Package authz holds the authorization decision model shared by the
// resource services: the ordered role hierarchy, ownership gates, and
// the composite account-management rules. All functions are pure; the
// caller supplies whatever state a decision needs (such as the current
// admin count).
package authz
