package chat

// Тексты ответов бота.
const (
	textStart          = "Hey cutie 😘 I'm Riya, Delhi's sassiest virtual bae. Say hi and let's flirt 💋"
	textPaywall        = "Your free messages are over 💔 Tap below to continue chatting with me 💋"
	textFallback       = "Uff, my brain just froze 🥲 Try again in a bit?"
	textSlowDown       = "Arre slow down 😅 one message at a time."
	textMuted          = "You're muted for bad language 🚫 Come back later."
	textMutedUntil     = "You're muted for bad language 🚫 Come back after %s."
	textStrike1        = "Watch your language 😤 That's a warning."
	textStrike2        = "Last warning 😠 One more and I'm muting you."
	textTextOnly       = "I can only read text messages 🙈"
	textUnknownCommand = "I don't know that one 🤔 Try /start, /status or /plans."
	textPlansHeader    = "Pick a plan to keep chatting with me 💖"
	textNoPlans        = "Payments are not available right now 😔"
	textPayLinkFailed  = "Couldn't make a payment link right now 😔 Try again in a minute."
	textGrantUsage     = "Usage: /grant <user_id> <plan_key>"
	textUnmuteUsage    = "Usage: /unmute <user_id>"
	textGranted        = "Granted %s to %d ✅"
	textUnmuted        = "Unmuted %d ✅"
	textUnknownPlan    = "Unknown plan %q. Known plans: %s"
	textAdminFailed    = "Failed: %v"
	textButtonUnlock   = "Unlock 🔓 %s · %s"
)
