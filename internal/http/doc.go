// Package httpapp provides the HTTP server for the math club ideaboard.
//
//	@title						Math Club Ideaboard API
//	@version					1.0
//	@description				Shared boards for math club activity ideas and integral problems.
//	@description
//	@description				## Authentication
//	@description
//	@description				Reading is open. Submitting, voting, rating, editing and deleting need an
//	@description				anonymous identity:
//	@description
//	@description				```bash
//	@description				curl -X POST /api/auth/anonymous
//	@description				# Returns: {"user_id": "...", "token": "TOKEN", "expires_at": "..."}
//	@description				curl -X POST /api/ideas/items -H "Authorization: Bearer TOKEN" -d '{"content":"Pi day relay"}'
//	@description				```
//	@description
//	@description				Posting to /api/auth/anonymous with a valid bearer token refreshes it and
//	@description				keeps the same user_id.
//	@description
//	@description				## Live updates
//	@description				Open a WebSocket on /api/{board}/watch to receive the current page after every change.
//
//	@contact.name				Math Club
//	@license.name				MIT
//
//	@host						localhost:8080
//	@BasePath					/
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token from POST /api/auth/anonymous
//
//	@tag.name					Items
//	@tag.description			Submit, browse, edit and delete ideas and integral problems.
//
//	@tag.name					Votes
//	@tag.description			Upvote or downvote ideas. One vote per identity; voting again withdraws it.
//
//	@tag.name					Ratings
//	@tag.description			Rate the difficulty of integral problems from 1 to 5.
//
//	@tag.name					Authentication
//	@tag.description			Anonymous sign-in and token refresh.
package httpapp
