package handlers

import (
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/auth"
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/idgen"
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/proto"
	"github.com/Nnutural/Secure-Instant-Messaging-System/internal/store"
	t "github.com/Nnutural/Secure-Instant-Messaging-System/internal/store/types"
)

// idGenerator is set once by the supervisor at startup; handlers never
// construct their own generator (spec.md §3: ids are stable and
// server-assigned, one generator per process).
var idGenerator *idgen.Generator

// SetIDGenerator wires the shared id generator into the handlers package.
func SetIDGenerator(g *idgen.Generator) {
	idGenerator = g
}

func fail(req proto.Tag, message string) (*Result, error) {
	return simpleResult(proto.NewResponse(req, false, message))
}

// Register implements spec.md §4.E "register": validates the submitted
// credentials, hashes the password, and creates the user row.
func Register(ctx *Context, env *proto.Envelope) (*Result, error) {
	username, _ := env.Metadata["username"].(string)
	password, _ := env.Metadata["password"].(string)
	email, _ := env.Metadata["email"].(string)
	pubkey, _ := env.Metadata["public_key"].(string)

	if err := ctx.Policy.ValidateRegistration(username, password, pubkey); err != nil {
		return fail(env.Type, err.Error())
	}

	iterations := ctx.PBKDF2Iterations
	if iterations <= 0 {
		iterations = auth.DefaultIterations
	}
	passBytes := []byte(password)
	hash, salt, err := auth.HashPassword(passBytes, iterations)
	auth.Zero(passBytes)
	if err != nil {
		return fail(env.Type, "server_error")
	}

	u := &t.User{
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Salt:         salt,
		PublicKey:    pubkey,
		CreatedAt:    ctx.Now,
		LastActivity: ctx.Now,
	}
	if idGenerator != nil {
		u.UserID = idGenerator.Next()
	}

	if err := store.Users.Create(u); err != nil {
		if store.IsConflict(err) {
			return fail(env.Type, "username exists")
		}
		return fail(env.Type, "server_error")
	}

	resp := proto.NewResponse(env.Type, true, "")
	resp.Metadata = map[string]interface{}{"user_id": u.UserID}
	return simpleResult(resp)
}

// Login implements spec.md §4.E "login": verifies credentials, binds the
// connection to the authenticated identity via Directory, issues a session
// token, and returns the public key.
func Login(ctx *Context, env *proto.Envelope) (*Result, error) {
	username, _ := env.Metadata["username"].(string)
	password, _ := env.Metadata["password"].(string)

	if ctx.Login != nil && !ctx.Login.Allowed(username) {
		return fail(env.Type, "quota")
	}

	u, err := store.Users.GetByUsername(username)
	if err != nil || u == nil {
		if ctx.Login != nil {
			ctx.Login.RecordFailure(username)
		}
		return fail(env.Type, "invalid credentials")
	}

	iterations := ctx.PBKDF2Iterations
	if iterations <= 0 {
		iterations = auth.DefaultIterations
	}
	passBytes := []byte(password)
	ok := auth.VerifyPassword(passBytes, u.PasswordHash, u.Salt, iterations)
	auth.Zero(passBytes)
	if !ok {
		if ctx.Login != nil {
			ctx.Login.RecordFailure(username)
		}
		return fail(env.Type, "invalid credentials")
	}
	if ctx.Login != nil {
		ctx.Login.RecordSuccess(username)
	}

	if err := ctx.Binder.Bind(u.UserID, u.Username); err != nil {
		return fail(env.Type, err.Error())
	}

	token, err := ctx.Tokens.Issue(u.UserID, u.Username)
	if err != nil {
		return fail(env.Type, "server_error")
	}

	sess := &t.Session{SessionID: token, UserID: u.UserID, CreatedAt: ctx.Now, LastActivity: ctx.Now, Active: true}
	_ = store.Sessions.Create(sess)
	_ = store.Users.SetOnline(u.UserID, true, ctx.Conn.RemoteAddr(), 0)

	resp := proto.NewResponse(env.Type, true, "")
	resp.Metadata = map[string]interface{}{
		"user_id":       u.UserID,
		"session_token": token,
		"public_key":    u.PublicKey,
	}
	return simpleResult(resp)
}

// Logout implements spec.md §4.E "logout": invalidates the persistent
// session row and unbinds the connection.
func Logout(ctx *Context, env *proto.Envelope) (*Result, error) {
	if !ctx.Conn.IsAuthenticated() {
		return fail(env.Type, "unauthorized")
	}
	if tok, _ := env.Metadata["session_token"].(string); tok != "" {
		_ = store.Sessions.Invalidate(tok)
	}
	_ = store.Users.SetOnline(ctx.Conn.UserID(), false, "", 0)
	ctx.Binder.Unbind()
	return simpleResult(proto.NewResponse(env.Type, true, ""))
}
