// Package biz implements the document QA pipeline: indexing documents into
// the vector store, retrieving relevant chunks for a question, and
// generating an answer grounded in the retrieved context.
package biz
