package logger

import "github.com/ideamans/go-l10n"

func init() {
	l10n.Register("fr", l10n.LexiconMap{
		// Orchestration level messages (info)
		"Starting pipeline":                      "Démarrage du pipeline",
		"Template loaded: %s":                    "Modèle chargé : %s",
		"Dimensions resolved: %dx%d from %s":     "Dimensions retenues : %dx%d (source %s)",
		"Exporting poster":                       "Export de l'affiche",
		"Pipeline completed successfully":        "Pipeline terminé avec succès",
		"Classifying %d files":                   "Classification de %d fichiers",
		"Interrupted, shutting down...":          "Interrompu, arrêt en cours...",
		"Image size probe failed, keeping %dx%d: %s": "Mesure de l'image impossible, %dx%d conservé : %s",

		// Orchestration failures
		"Failed to load template: %s":     "Échec du chargement du modèle : %s",
		"Failed to start session: %s":     "Échec de l'ouverture de session : %s",
		"Failed to resolve dimensions: %s": "Échec de la résolution des dimensions : %s",
		"Invalid form input: %s":          "Saisie du formulaire invalide : %s",
		"Failed to export poster: %s":     "Échec de l'export de l'affiche : %s",
		"Failed to classify assets: %s":   "Échec de la classification des fichiers : %s",

		// Session
		"Session started for %s": "Session ouverte pour %s",
		"Signed out":             "Déconnecté",
		"Profile created for %s": "Profil créé pour %s",

		// Classify stage
		"Classifying %d files with %d workers":   "Classification de %d fichiers avec %d workers",
		"Rejected %s: media type not allowed":    "%s refusé : type de média non autorisé",
		"Skipped %s: %v":                         "%s ignoré : %v",
		"Classified %d assets, %d rejected, %d failed": "%d fichiers classés, %d refusés, %d en échec",

		// Formula stage
		"Formula skipped for %s: %v":                       "Formule ignorée pour %s : %v",
		"Non-numeric value of %s counted as 0: %q":         "Valeur non numérique de %s comptée comme 0 : %q",
		"Circular formulas ignored: %s":                    "Formules circulaires ignorées : %s",
		"Formulas converged after %d passes with %d updates": "Formules stabilisées après %d passes, %d mises à jour",

		// Dimension stage
		"CSS not parsed, using stored dimensions: %v": "CSS illisible, dimensions enregistrées utilisées : %v",
		"Dimensions %dx%d from %s":                    "Dimensions %dx%d depuis %s",
		"Dimensions %dx%d from template record":       "Dimensions %dx%d depuis la fiche du modèle",
		"Dimensions %dx%d from auto-size image":       "Dimensions %dx%d depuis l'image auto-dimensionnée",
		"Auto-size image did not load within %v":      "L'image auto-dimensionnée n'a pas chargé en %v",
		"Probe result discarded: session ended":       "Mesure ignorée : session terminée",
		"Probe result discarded: preview left":        "Mesure ignorée : aperçu quitté",

		// Interpolate stage
		"Unbound placeholders left in markup: %v": "Variables non remplacées dans le HTML : %v",

		// Export stage
		"Export already in progress, request ignored": "Export déjà en cours, demande ignorée",
		"Rasterizing %dx%d at %.0fx":                   "Rendu %dx%d à %.0fx",
		"Poster saved to %s (%d bytes)":                "Affiche enregistrée dans %s (%d octets)",
		"Generated visual not recorded: %v":            "Visuel généré non enregistré : %v",
		"Recorded generated visual %s":                 "Visuel généré %s enregistré",

		// Contact sheet stage
		"Contact sheet %dx%d with %d assets": "Planche contact %dx%d avec %d fichiers",
		"Thumbnail for %s not decoded: %v":   "Vignette de %s non décodée : %v",

		// Asset library
		"Uploaded %s as %s": "%s envoyé sous %s",
		"Deleted %d assets": "%d fichiers supprimés",

		// Backends
		"Using PostgreSQL store":              "Base PostgreSQL utilisée",
		"Using in-memory store":               "Stockage en mémoire utilisé",
		"Using object storage at %s (bucket %s)": "Stockage objet %s utilisé (bucket %s)",
		"Using in-memory asset storage":       "Stockage des fichiers en mémoire utilisé",
		"Acting as user %s":                   "Utilisateur courant : %s",
	})
}
