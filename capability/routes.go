package capability

// DefaultRoutes is the built-in route table for the common APort policy
// domains. Order matters for the wildcard entries; exact entries win
// regardless of position.
var DefaultRoutes = []RouteCapability{
	{Pattern: "/api/payments/refund", Capabilities: []string{"payments.refund"}},
	{Pattern: "/api/refunds", Capabilities: []string{"payments.refund"}},
	{Pattern: "/api/refunds/*", Capabilities: []string{"payments.refund"}},

	{Pattern: "/api/repo/pr", Capabilities: []string{"repo.pr.create"}},
	{Pattern: "/api/repo/merge", Capabilities: []string{"repo.merge"}},
	{Pattern: "/api/repo/*", Capabilities: []string{"repo.read"}},

	{Pattern: "/api/data/export", Capabilities: []string{"data.export"}},
	{Pattern: "/api/exports/*", Capabilities: []string{"data.export"}},

	{Pattern: "/api/messages/*", Capabilities: []string{"messaging.send"}},

	{Pattern: "/api/releases/*", Capabilities: []string{"code.release"}},
}
