// Package chat implements the coordination core of linechat: the Registry of
// nicknames, channels and routes shared by every connection, and the Session
// that turns one client's lines into commands against it.
//
// The package knows nothing about sockets. A transport supplies an Outbox per
// connection, feeds received lines to Session.HandleLine and calls
// Session.Disconnect exactly when the connection goes away.
package chat
