package providers

import (
	"github.com/orchestra-mcp/expense/src/auth"
	"github.com/orchestra-mcp/expense/src/hub"
	"github.com/orchestra-mcp/expense/src/presence"
	"github.com/orchestra-mcp/expense/src/service"
	"github.com/orchestra-mcp/expense/src/store"
	"github.com/orchestra-mcp/expense/src/types"
)

// Compile-time interface assertions.
var (
	_ presence.Broadcaster  = (*hub.Hub)(nil)
	_ service.Authenticator = (*auth.Verifier)(nil)
	_ service.Tokens        = (*auth.Verifier)(nil)
	_ service.UserStore     = (*store.Store)(nil)
	_ service.ExpenseStore  = (*store.Store)(nil)
	_ auth.RevocationList   = (*auth.RedisRevocationList)(nil)
	_ types.Conn            = (*fasthttpConn)(nil)
)
