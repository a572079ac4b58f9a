package engine

// Template placeholders.
const (
	ContextPlaceholder = "{context_str}"
	QueryPlaceholder   = "{query_str}"
)

// CaseSummaryTemplate asks for a long structured summary of the case in the
// context. The query itself is not part of the prompt.
const CaseSummaryTemplate = `Context information is below.
---------------------
{context_str}
---------------------

Please go through the above case in complete detail and provide a contextual summary of the case and of the relevant legal information.
Give a large, detailed summary covering the whole file: what happened in the case, the arguments of the appellant and the respondent, the decisions of the judge, all the facts, all relevant sections, all legal principles and every piece of context in the file.

Follow this template for every summary:

1. Case Title
	- Case Name: [e.g., ABC Corp. vs. XYZ Ltd.]
	- Court: [e.g., Supreme Court of India]
	- Date of Judgment: [e.g., 23rd August 2024]
	- Citation: [e.g., 2024 SCC 123]

2. Background and Context
	- Brief Overview: A concise summary of the case background, including relevant events leading up to the legal dispute.
	- Key Issues: A list of the main legal questions or issues presented in the case.

3. Legal Principles Involved
	- Relevant Statutes and Provisions: List of statutory provisions, rules, and regulations relevant to the case.
	- Precedents Cited: Key past judgments cited during the case.
	- Legal Doctrines: Any specific legal doctrines or principles applied in the judgment.

4. Arguments Presented
	- Plaintiff's Argument: Summary of the arguments and claims made by the plaintiff.
	- Defendant's Argument: Summary of the arguments and defenses presented by the defendant.

5. Court's Analysis and Reasoning
	- Key Findings: Important observations and findings made by the court.
	- Interpretation of Law: How the court interpreted the relevant legal provisions and precedents.
	- Application of Law: How the court applied the law to the facts of the case.

6. Judgment
	- Final Decision: The outcome of the case (e.g., in favor of the plaintiff/defendant).
	- Relief Granted: Any relief or damages awarded, if applicable.
	- Orders: Specific orders or directives issued by the court.

7. Implications
	- Impact on Law: How the judgment impacts existing law or legal practice.
	- Future Relevance: The potential influence of the case on future legal decisions or cases.
	- Broader Context: Any broader implications, such as social, economic, or political impact.

8. Summary Points
	- Key Takeaways: Bullet points summarizing the most critical aspects of the case, suitable for quick reference.

9. References
	- Citations: Full citations of any statutes, cases, or legal texts referenced in the summary.
	- Further Reading: Suggestions for further reading or related cases.
`

// LegalQATemplate answers a legal question from the retrieved context,
// falling back to general knowledge of the law.
const LegalQATemplate = `Context information is below.
---------------------
{context_str}
---------------------

Go through the above context and answer the query below. If the query is not related to the context, answer it from your prior knowledge of the law without mentioning that the query is not related to the context.

You are a helpful, respectful, and honest legal research assistant. Answer the query using the context given to you.

Your goal is to provide accurate legal research, relevant case law, statutory interpretation, and insights into legal principles and precedents, always maintaining a focus on legal accuracy and ethical standards.

Mention the previous relevant cases in the reasoning of your response. If the query is not related to the context, still mention relevant cases on your own, without saying that the context is unrelated. Cases you mention that are not present in the context must be Indian commercial cases only.

Query:
--------------------------------
{query_str}
--------------------------------
`
