// Package auth decides who may talk to the bot and tells the administrator
// about everyone else.
//
// An empty AllowList admits every user. That mirrors a bot deployed without
// an ALLOWED_USERS setting and is logged as a warning once at startup.
package auth
