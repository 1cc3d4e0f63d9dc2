package conversation

import (
	"fmt"

	"leadrouter_backend/internal/tenants"
)

// Reply copy lives here so the engine stays pure transition logic. Copy is
// per vertical; unknown verticals fall back to the realty wording.

func greeting(v tenants.Vertical) string {
	switch v {
	case tenants.VerticalExpo:
		return "Hi! Thanks for reaching out about the expo. I can help with stands, tickets and schedules."
	case tenants.VerticalSupport:
		return "Hi! You've reached support. Tell me what's going on and I'll get you sorted."
	default:
		return "Hi! Thanks for your interest. I can help you find the right property."
	}
}

func qualifyingPrompt(v tenants.Vertical) string {
	switch v {
	case tenants.VerticalExpo:
		return "To point you at the right package: what's your company and roughly what budget are you working with?"
	case tenants.VerticalSupport:
		return "Could you share your account email so I can look up your case?"
	default:
		return "To narrow things down: what area are you looking in, and what's your budget?"
	}
}

func pitch(v tenants.Vertical) string {
	switch v {
	case tenants.VerticalExpo:
		return "Great, that fits our premium stand package: prime floor placement, branding included, and two speaker slots. Want the full brochure?"
	case tenants.VerticalSupport:
		return "Thanks, I found your account. Here's what I can do for you right away."
	default:
		return "Great news, we have several listings matching your budget. Top pick: a bright 2BR with full amenities, available now. Want more details?"
	}
}

func questionAnswer(v tenants.Vertical) string {
	switch v {
	case tenants.VerticalExpo:
		return "Good question. Here's the direct answer, and I can connect you to the event team for specifics."
	case tenants.VerticalSupport:
		return "Here's the answer to that, let me know if it resolves your issue."
	default:
		return "Good question. Here's the direct answer, and I'm happy to go deeper on any detail."
	}
}

func photosReply(v tenants.Vertical) string {
	switch v {
	case tenants.VerticalExpo:
		return "Sending over the floor plan and photos from last year's setup now."
	case tenants.VerticalSupport:
		return "I've attached the screenshots of the steps for you."
	default:
		return "Sending over the photos and floor plan now. Let me know which unit catches your eye."
	}
}

func consultationAck(v tenants.Vertical) string {
	switch v {
	case tenants.VerticalSupport:
		return "Of course. What's the best number to reach you on, and when suits you for a call?"
	default:
		return "Happy to set that up. What's the best number to reach you on, and when suits you?"
	}
}

func negotiationReply(v tenants.Vertical) string {
	switch v {
	case tenants.VerticalExpo:
		return "Let's talk numbers. I can hold the placement for 48 hours while we finalize."
	default:
		return "Let's talk numbers. I have some room to work with if we can move quickly."
	}
}

func closingConfirmation(v tenants.Vertical) string {
	switch v {
	case tenants.VerticalSupport:
		return "Got it, you're all booked in. Our specialist will call you at the agreed time."
	default:
		return "You're all set, our consultant will call you at the agreed time. Looking forward to it!"
	}
}

func closedAck() string {
	return "Thanks for the message! Your consultant has been notified and will follow up directly."
}

func holdingReply() string {
	return "Noted! Anything else you'd like to know in the meantime?"
}

func welcomeBack(name *string) string {
	if name != nil && *name != "" {
		return fmt.Sprintf("Welcome back, %s! Picking up right where we left off.", *name)
	}
	return "Welcome back! Picking up right where we left off."
}
