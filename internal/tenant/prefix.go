package tenant

import "context"

// PrefixKey creates a namespaced cache key per tenant slug or id.
func PrefixKey(tenantSlugOrID, key string) string {
	if tenantSlugOrID == "" {
		return key
	}
	return tenantSlugOrID + ":" + key
}

// KeyFor prefixes key with the tenant carried by ctx, if any.
func KeyFor(ctx context.Context, key string) string {
	id, _ := FromContext(ctx)
	return PrefixKey(id, key)
}
