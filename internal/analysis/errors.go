package analysis

import (
	"errors"
	"fmt"

	"github.com/commercebatola-sys/Outil1/internal/providers"
	"github.com/commercebatola-sys/Outil1/internal/session"
	"github.com/commercebatola-sys/Outil1/internal/util"
)

type Kind string

const (
	KindInvalid  Kind = "invalid"
	KindNotFound Kind = "not_found"
	KindDocument Kind = "document"
	KindProvider Kind = "provider"
	KindConflict Kind = "conflict"
)

// Error is a failure the user sees. Message is ready for display; Cause keeps
// the underlying error for logs and errors.Is.
type Error struct {
	Op      string
	Kind    Kind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Cause)
	}
	return e.Op + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

const (
	msgNoSession    = "⚠️ Session introuvable ou expirée."
	msgNoDocument   = "⚠️ Veuillez d'abord charger un document PDF."
	msgDocChanged   = "⚠️ Le document a été remplacé pendant le traitement. Veuillez relancer la demande."
	msgNoProvider   = "⚠️ Fournisseur inconnu : "
	msgNoSummary    = "⚠️ Aucun résumé disponible pour ce document."
	msgEmptyQ       = "⚠️ Veuillez saisir une question."
	msgNotPDF       = "❌ Seuls les fichiers PDF sont acceptés."
	msgReadPDF      = "❌ Erreur lors de la lecture du PDF: "
	msgSummary      = "❌ Erreur lors de la génération du résumé: "
	msgAnswer       = "❌ Erreur lors de la réponse à la question: "
	msgNoAnswer     = "❌ Impossible de générer une réponse"
	msgKeyMissing   = "❌ Clé API requise pour utiliser l'application"
	msgKeyInvalid   = "❌ La clé API semble incorrecte (trop courte)"
	msgNoModels     = "⚠️ Aucun modèle disponible."
	msgNoText       = "aucun texte extractible (document scanné ou protégé ?)"
	msgTruncatedFmt = "⚠️ Le texte a été tronqué à %d caractères pour des raisons de performance."
)

func sessionErr(op string, err error) error {
	if errors.Is(err, session.ErrSessionNotFound) {
		return &Error{Op: op, Kind: KindNotFound, Message: msgNoSession, Cause: err}
	}
	if errors.Is(err, session.ErrDocumentChanged) {
		return &Error{Op: op, Kind: KindConflict, Message: msgDocChanged, Cause: err}
	}
	return err
}

func invalid(op, msg string, cause error) *Error {
	return &Error{Op: op, Kind: KindInvalid, Message: msg, Cause: cause}
}

func documentErr(err error) *Error {
	detail := err.Error()
	switch {
	case errors.Is(err, util.ErrNoExtractableText):
		detail = msgNoText
	case errors.Is(err, util.ErrNotPDF):
		return invalid("upload", msgNotPDF, err)
	}
	return &Error{Op: "upload", Kind: KindDocument, Message: msgReadPDF + detail, Cause: err}
}

func providerErr(op, prefix string, err error) *Error {
	msg := prefix + err.Error()
	switch {
	case errors.Is(err, providers.ErrMissingAPIKey):
		msg = msgKeyMissing
	case errors.Is(err, providers.ErrInvalidAPIKey):
		msg = msgKeyInvalid
	case errors.Is(err, providers.ErrNoModels):
		msg = msgNoModels
	}
	return &Error{Op: op, Kind: KindProvider, Message: msg, Cause: err}
}
