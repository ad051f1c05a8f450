package handler

import (
	"exchange-hub-go/internal/transport/httpserver/handler/admin"
	commonhandler "exchange-hub-go/internal/transport/httpserver/handler/common"
	"exchange-hub-go/internal/transport/httpserver/handler/dashboard"
	"exchange-hub-go/internal/transport/httpserver/handler/documents"
	"exchange-hub-go/internal/transport/httpserver/handler/exchanges"
	"exchange-hub-go/internal/transport/httpserver/handler/invitations"
	"exchange-hub-go/internal/transport/httpserver/handler/notifications"
	"exchange-hub-go/internal/transport/httpserver/handler/tasks"
	"exchange-hub-go/internal/transport/httpserver/handler/users"
)

type Handlers struct {
	Health        *commonhandler.Health
	Exchanges     *exchanges.Handlers
	Invitations   *invitations.Handlers
	Tasks         *tasks.Handlers
	Documents     *documents.Handlers
	Notifications *notifications.Handlers
	Users         *users.Handlers
	Admin         *admin.Handlers
	Dashboard     *dashboard.Handlers
}
