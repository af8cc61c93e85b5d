// Package main provides localization for the postergen CLI.
package main

import (
	"github.com/ideamans/go-l10n"
)

func init() {
	// Register French translations for CLI messages.
	l10n.Register("fr", l10n.LexiconMap{
		// Root command
		"Generate event posters from HTML templates.": "Générer des affiches d'événements à partir de modèles HTML.",

		// Render command
		"Poster written to %s (%dx%d)": "Affiche écrite dans %s (%dx%d)",
		"Warning: formula field %s is part of a cycle and was not computed": "Attention : le champ calculé %s fait partie d'un cycle et n'a pas été calculé",

		"Summary written to %s": "Rapport écrit dans %s",

		// Classify command
		"Rejected: %s":                "Refusé : %s",
		"Not decoded: %s (%v)":        "Non décodé : %s (%v)",
		"Contact sheet written to %s": "Planche contact écrite dans %s",

		// History command
		"No posters generated yet.": "Aucune affiche générée pour le moment.",

		// Signup command
		"Account %s created for %s": "Compte %s créé pour %s",

		// Version command
		"postergen version %s": "postergen version %s",
	})
}
