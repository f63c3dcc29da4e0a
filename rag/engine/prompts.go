package engine

// Prompt templates. Each takes its arguments through %s verbs in the order
// noted beside it.
const (
	// question
	EntityExtractionPrompt = "Extract all entities, concepts, names, and important terms from the following query.\n" +
		"Return them as a simple comma-separated list with no explanations.\n\n" +
		"Query: %s\n\nEntities:"

	// question
	RelationshipExtractionPrompt = "Extract all possible relationship types, actions, or connection-related verbs from the following query.\n" +
		"Return them as a simple comma-separated list with no explanations.\n\n" +
		"Query: %s\n\nRelationships:"

	// question, graph JSON
	EntityRelationshipsAnswerPrompt = `
Based on the knowledge graph data below, answer the user's question directly and concisely.

User's question: %s

Knowledge graph data:
%s

Instructions:
- Answer based ONLY on the provided graph data
- Be direct and concise
- Do not add external knowledge
- If the data shows relationships, describe them clearly
- If asking about a specific entity, focus on what the data shows about that entity

Answer:`

	// question, graph JSON
	EntityNoRelationshipsAnswerPrompt = `
The entity from the user's question exists in the knowledge graph but has no relationships with other entities.

User's question: %s

Entity data:
%s

Provide a brief response indicating that the entity exists but has no connections in the current knowledge graph.

Answer:`

	// question, graph JSON
	AllRelationshipsAnswerPrompt = `
The user asked about something not specifically found in the knowledge graph. Here are the available relationships in the knowledge graph:

User's question: %s

Available relationships:
%s

Instructions:
- Mention that the specific entity/concept wasn't found
- Briefly describe what relationships are available in the knowledge graph
- Be concise and factual

Answer:`

	// question, graph JSON
	DefaultAnswerPrompt = `
Answer the user's question based on the available knowledge graph data:

User's question: %s

Data:
%s

Answer:`

	// context, question
	SemanticAnswerPrompt = `
Answer the following question based only on the context provided.

Context:
%s

Question: %s
Answer:
`

	// question, graph answer, semantic answer
	CombineAnswersPrompt = `
You are an intelligent assistant helping a user by combining structured data from a knowledge graph and unstructured data from semantic retrieval.

User Query: %s

Answer from Knowledge Graph:
%s

Answer from Semantic Retrieval:
%s

Provide a clear, helpful, and final response to the user:
`
)

// Canned answers returned without, or instead of, a model response.
const (
	NoGraphDataAnswer      = "No data found in the knowledge graph."
	GraphUnavailableAnswer = "The knowledge graph could not be reached. Please try again later."
	SynthesisFailedAnswer  = "Sorry, I encountered an error while generating the answer."
	EmptySynthesisAnswer   = "Unable to generate answer from the available data."
	NoCombinedAnswer       = "No answer could be generated from either system."
)
