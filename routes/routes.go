package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/pixeluwjal/sanghaforms-sub002/app"
	"github.com/pixeluwjal/sanghaforms-sub002/routes/middlewares"
)

var validate = validator.New()

func Wire(app app.App) http.Handler {
	root := chi.NewRouter()
	root.Use(middleware.Logger, middleware.Recoverer)

	root.Mount("/api", apiRouter(app))

	return root
}

func apiRouter(app app.App) http.Handler {
	api := chi.NewRouter()

	// public surface
	api.Get("/forms/{slug}", PublicGetForm(app))
	api.Post("/submissions", SubmitForm(app))
	api.Post("/payments/orders", CreateOrder(app))
	api.Get("/payments/orders/{orderId}", GetOrderStatus(app))
	api.Post("/payments/verify", VerifyPayment(app))
	api.Post("/payments/status", UpdatePaymentStatus(app))

	api.Post("/login", Login(app))
	api.Post("/logout", Logout(app))

	api.Route("/admin", func(r chi.Router) {
		// account activation consumes an invitation token, no session yet
		r.Post("/accounts/activate", ActivateAccount(app))

		r.Group(func(r chi.Router) {
			r.Use(middlewares.CookieAuth(app.TokenAuth))

			r.Post("/invitations", InviteAdmin(app))
			r.Get("/accounts", ListAdmins(app))
			r.With(middlewares.RequireSuperAdmin).
				Delete("/accounts/{id}", DeleteAdmin(app))

			// CRUD forms
			r.Post("/forms", CreateForm(app))
			r.Get("/forms", ListForms(app))
			r.Get("/forms/slug-check", CheckSlug(app))
			r.Get("/forms/{id}", GetForm(app))
			r.Put("/forms/{id}", UpdateForm(app))
			r.Delete("/forms/{id}", DeleteForm(app))
			r.Post("/forms/{id}/publish", PublishForm(app))

			r.Get("/forms/{id}/responses", ListFormResponses(app))
			r.Get("/forms/{id}/responses/export", ExportFormResponses(app))
			r.Get("/responses/{id}", GetResponse(app))
			r.Delete("/responses/{id}", DeleteResponse(app))

			r.Patch("/leads/{id}", UpdateLead(app))
			r.Post("/leads/import", BulkImportLeads(app))

			r.Get("/sources", ListSources(app))
			r.Post("/sources", CreateSource(app))
			r.Delete("/sources/{id}", DeleteSource(app))
		})
	})

	return api
}
