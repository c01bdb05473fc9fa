package assistant

import "strings"

type cannedReply struct {
	keywords []string
	reply    string
}

// Order matters: the first rule with a matching keyword wins.
var cannedReplies = []cannedReply{
	{
		keywords: []string{"hello", "hi ", "hey", "good morning", "good evening"},
		reply:    "Hello! I'm the PeerQ assistant. I can help you ask good questions, find answers and get around the forum. What would you like to do?",
	},
	{
		keywords: []string{"how to ask", "ask a question", "post a question", "new question"},
		reply: "To ask a question, click **Ask Question**, then:\n\n" +
			"1. Write a specific title that summarizes the problem.\n" +
			"2. Describe what you tried and what happened, including code or error messages.\n" +
			"3. Add a few tags so the right people find it.\n\n" +
			"Guest accounts need to be upgraded before posting.",
	},
	{
		keywords: []string{"accept"},
		reply:    "If you asked the question, open it and click **Accept** on the answer that solved your problem. Only one answer can be accepted at a time; accepting another one replaces it.",
	},
	{
		keywords: []string{"vote", "upvote", "downvote"},
		reply:    "Use the arrows next to a question or answer to upvote or downvote it. Clicking the same arrow again removes your vote. Guests cannot vote.",
	},
	{
		keywords: []string{"answer", "reply"},
		reply:    "To answer, open the question and use the editor at the bottom of the page. Good answers explain the solution and include a short example where it helps.",
	},
	{
		keywords: []string{"tag"},
		reply:    "Tags group questions by topic. Browse popular tags on the questions page or add up to five tags when you post a question.",
	},
	{
		keywords: []string{"search", "find"},
		reply:    "Use the search box to look through question titles, descriptions, tags and answers. Try a couple of distinctive keywords rather than a full sentence.",
	},
	{
		keywords: []string{"notification"},
		reply:    "The bell icon shows your notifications, such as new answers to your questions or accepted answers. You can mark them read one by one or all at once.",
	},
	{
		keywords: []string{"guest", "upgrade", "account", "register", "sign up"},
		reply:    "Guests can browse everything. To post questions, answer or vote, upgrade your guest account from your profile by adding an email and password.",
	},
	{
		keywords: []string{"reputation", "points"},
		reply:    "Reputation reflects how the community values your contributions. Helpful questions and answers earn it over time.",
	},
}

const defaultCannedReply = "I'm having trouble reaching the AI service right now, but I can still help with the basics: " +
	"asking questions, answering, voting, tags, search and notifications. What would you like to know?"

// Fallback returns a canned reply chosen by keywords in message. It is pure
// and always returns non-empty text.
func Fallback(message string) string {
	m := " " + strings.ToLower(strings.TrimSpace(message)) + " "
	for _, c := range cannedReplies {
		for _, k := range c.keywords {
			if strings.Contains(m, k) {
				return c.reply
			}
		}
	}
	return defaultCannedReply
}
